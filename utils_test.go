package handover

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/handover/internal/mcast"
)

var l = log15.New()

func tmpDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "handover_test")
	if err != nil {
		panic(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func markerPath(t *testing.T) string {
	return filepath.Join(tmpDir(t), "handover-complete")
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// tap registers a raw receiver on the bus, to observe what gets sent.
func tap(t *testing.T, bus *memBus) <-chan mcast.Datagram {
	r, err := bus.Listen(l)
	if err != nil {
		t.Fatalf("unable to listen: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r.Datagrams()
}

func expectDatagram(t *testing.T, c <-chan mcast.Datagram) []byte {
	t.Helper()
	select {
	case d := <-c:
		return d.Payload
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a datagram")
	}
	return nil
}

func expectNoDatagram(t *testing.T, c <-chan mcast.Datagram) {
	t.Helper()
	select {
	case d := <-c:
		t.Fatalf("unexpected datagram: %v", d.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func expectClosed(t *testing.T, c <-chan struct{}) {
	t.Helper()
	select {
	case <-c:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel to close")
	}
}
