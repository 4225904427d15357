package handover

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ngrok/handover/internal/mcast"
	"github.com/ngrok/handover/internal/proto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	fakeclock "k8s.io/utils/clock/testing"
)

var testAddresses = []string{"172.10.0.4", "192.168.0.1"}

func newTestPublisher(t *testing.T, bus *memBus, clk *fakeclock.FakeClock, name string, addresses []string) *StatusPublisher {
	p, err := newStatusPublisher(bus, clk, time.Now(), name, addresses, WithLogger(l), WithID(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func expectStatus(t *testing.T, c <-chan mcast.Datagram, status ServiceStatus) StatusMessage {
	t.Helper()
	msg, err := proto.DecodeStatus(expectDatagram(t, c))
	require.NoError(t, err)
	require.Equal(t, status, msg.Status)
	return msg
}

// TestStatusUpThenDown follows a service through its lifecycle: it announces
// UP while serving, then DOWN while draining, and a listener sees both.
func TestStatusUpThenDown(t *testing.T) {
	ctx := testCtx(t)
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)

	var mu sync.Mutex
	var seen []StatusMessage
	require.NoError(t, p.StartListening(ctx, func(ctx context.Context, msg StatusMessage) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, msg)
		return nil
	}))

	p.StartBroadcastingUp()
	p.StartBroadcastingDown()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		var up, down bool
		for _, msg := range seen {
			up = up || msg.Status == StatusUp
			down = down || msg.Status == StatusDown
		}
		return up && down
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, msg := range seen {
		require.Equal(t, "api", msg.ServiceName)
		require.Equal(t, testAddresses, msg.Addresses)
	}
}

func TestStatusUpCadence(t *testing.T) {
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)
	sent := tap(t, bus)

	p.StartBroadcastingUp()
	p.StartBroadcastingUp()
	msg := expectStatus(t, sent, StatusUp)
	require.Equal(t, testAddresses, msg.Addresses)
	expectNoDatagram(t, sent)

	clk.Step(DownInterval)
	expectNoDatagram(t, sent)
	clk.Step(UpInterval - DownInterval)
	expectStatus(t, sent, StatusUp)

	p.StopBroadcastingUp()
	clk.Step(UpInterval)
	expectNoDatagram(t, sent)
}

func TestStatusDownCadence(t *testing.T) {
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)
	sent := tap(t, bus)

	p.StartBroadcastingDown()
	expectStatus(t, sent, StatusDown)
	clk.Step(DownInterval)
	expectStatus(t, sent, StatusDown)
	clk.Step(DownInterval)
	expectStatus(t, sent, StatusDown)

	// calling again re-arms, which sends right away
	p.StartBroadcastingDown()
	expectStatus(t, sent, StatusDown)
	expectNoDatagram(t, sent)
}

func TestStatusCloseStopsBroadcasts(t *testing.T) {
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)
	sent := tap(t, bus)

	p.StartBroadcastingUp()
	expectStatus(t, sent, StatusUp)
	p.StartBroadcastingDown()
	expectStatus(t, sent, StatusDown)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	clk.Step(UpInterval)
	expectNoDatagram(t, sent)

	p.StartBroadcastingUp()
	p.StartBroadcastingDown()
	expectNoDatagram(t, sent)
	require.True(t, errors.Is(p.StartListening(testCtx(t), nil), ErrClosed))
}

func TestStatusListenerDropsBadMessages(t *testing.T) {
	ctx := testCtx(t)
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)

	received := make(chan StatusMessage, 10)
	require.NoError(t, p.StartListening(ctx, func(ctx context.Context, msg StatusMessage) error {
		received <- msg
		if msg.ServiceName == "broken" {
			return errors.New("cannot handle this peer")
		}
		return nil
	}))

	broken, err := proto.EncodeStatus(proto.Status{ServiceName: "broken", Status: proto.StatusDown})
	require.NoError(t, err)
	bus.inject(mcast.Datagram{Payload: proto.EncodeHandover(1), Src: memAddr})
	bus.inject(mcast.Datagram{Payload: []byte{2, 0}, Src: memAddr})
	bus.inject(mcast.Datagram{Err: errors.New("connection refused")})
	bus.inject(mcast.Datagram{Payload: broken, Src: memAddr})

	p.StartBroadcastingUp()

	select {
	case msg := <-received:
		require.Equal(t, "broken", msg.ServiceName)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	select {
	case msg := <-received:
		require.Equal(t, "api", msg.ServiceName)
		require.Equal(t, StatusUp, msg.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestStatusListenerSurvivesPanickingCallback(t *testing.T) {
	ctx := testCtx(t)
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)

	discarded := metricDatagramsDiscarded.WithLabelValues(protocolStatus, "callback")
	before := testutil.ToFloat64(discarded)

	var calls int32
	received := make(chan StatusMessage, 10)
	require.NoError(t, p.StartListening(ctx, func(ctx context.Context, msg StatusMessage) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("handler bug")
		}
		received <- msg
		return nil
	}))

	first, err := proto.EncodeStatus(proto.Status{ServiceName: "first", Status: proto.StatusUp})
	require.NoError(t, err)
	bus.inject(mcast.Datagram{Payload: first, Src: memAddr})
	p.StartBroadcastingUp()

	select {
	case msg := <-received:
		require.Equal(t, "api", msg.ServiceName)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.GreaterOrEqual(t, testutil.ToFloat64(discarded), before+1)
}

func TestStatusListenerNilCallback(t *testing.T) {
	ctx := testCtx(t)
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())
	p := newTestPublisher(t, bus, clk, "api", testAddresses)
	c := tap(t, bus)

	received := metricDatagramsReceived.WithLabelValues(protocolStatus)
	before := testutil.ToFloat64(received)

	require.NoError(t, p.StartListening(ctx, nil))
	p.StartBroadcastingUp()
	expectStatus(t, c, StatusUp)
	clk.Step(UpInterval)
	expectStatus(t, c, StatusUp)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(received) >= before+2
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, bus.listeners())
}

func TestNewStatusPublisherRejectsBadInput(t *testing.T) {
	bus := newMemBus()
	clk := fakeclock.NewFakeClock(time.Now())

	_, err := newStatusPublisher(bus, clk, time.Now(), "api", []string{"172.10.0.300"})
	require.True(t, errors.Is(err, proto.ErrInvalidAddress), "%v", err)

	_, err = newStatusPublisher(bus, clk, time.Now(), strings.Repeat("a", 100), nil)
	require.True(t, errors.Is(err, proto.ErrFieldTooLong), "%v", err)

	_, err = newStatusPublisher(bus, clk, time.Now(), "api", strings.Split("1.1.1.1,1.1.1.2,1.1.1.3,1.1.1.4,1.1.1.5,1.1.1.6,1.1.1.7,1.1.1.8,1.1.1.9,1.1.1.10,1.1.1.11", ","))
	require.True(t, errors.Is(err, proto.ErrTooManyAddresses), "%v", err)

	cfg := DefaultStatusConfig()
	cfg.Group = ""
	_, err = NewStatusPublisher(time.Now(), "api", nil, cfg)
	require.Error(t, err)
}
