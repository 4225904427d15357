package mcast

import (
	"bytes"
	"net"
	"os"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/handover/internal/proto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var l = log15.New()

func TestConfigGroupAddr(t *testing.T) {
	tests := []struct {
		cfg   Config
		valid bool
	}{
		{Config{Group: "239.192.16.16", Port: 1536}, true},
		{Config{Group: "224.0.0.251", Port: 5353}, true},
		{Config{Group: "192.168.0.1", Port: 1536}, false},
		{Config{Group: "ff02::1", Port: 1536}, false},
		{Config{Group: "239.192.16.16", Port: 0}, false},
		{Config{Group: "239.192.16.16", Port: 70000}, false},
		{Config{Group: "", Port: 1536}, false},
	}
	for _, tc := range tests {
		addr, err := tc.cfg.groupAddr()
		if tc.valid {
			require.NoError(t, err, "%+v", tc.cfg)
			require.Equal(t, tc.cfg.Port, addr.Port)
		} else {
			require.Error(t, err, "%+v", tc.cfg)
		}
	}
}

func TestConfigString(t *testing.T) {
	require.Equal(t, "239.192.16.16:1536", Config{Group: "239.192.16.16", Port: 1536}.String())
	require.Equal(t, "239.192.16.16:1537%supervisor0", Config{Group: "239.192.16.16", Port: 1537, Interface: "supervisor0"}.String())
}

func TestResolveMissingInterface(t *testing.T) {
	require.Nil(t, resolveInterface(l, ""))
	require.Nil(t, resolveInterface(l, "definitely-not-an-interface0"))
}

func TestInterfaceIPv4Loopback(t *testing.T) {
	intfs, err := net.Interfaces()
	require.NoError(t, err)
	for _, intf := range intfs {
		if intf.Flags&net.FlagLoopback == 0 {
			continue
		}
		ip, err := interfaceIPv4(&intf)
		if err != nil {
			// loopback without IPv4, e.g. an IPv6-only sandbox
			continue
		}
		require.True(t, ip.IsLoopback(), "%v", ip)
		return
	}
	t.Skip("no IPv4 loopback interface")
}

func TestReadBackoff(t *testing.T) {
	var b readBackoff
	require.Equal(t, 10*time.Millisecond, b.next())
	require.Equal(t, 20*time.Millisecond, b.next())
	require.Equal(t, 40*time.Millisecond, b.next())
	for i := 0; i < 10; i++ {
		b.next()
	}
	require.Equal(t, time.Second, b.next())

	b.reset()
	require.Equal(t, 10*time.Millisecond, b.next())
}

func TestReceiverWaitStopsOnClose(t *testing.T) {
	r := &Receiver{done: make(chan struct{})}
	require.True(t, r.wait(time.Millisecond))

	close(r.done)
	start := time.Now()
	require.False(t, r.wait(time.Hour))
	require.Less(t, time.Since(start), time.Second)
}

// TestDialEnablesLoopback checks that peers on one host hear each other
// unless loopback is disabled.
func TestDialEnablesLoopback(t *testing.T) {
	for _, disable := range []bool{false, true} {
		s, err := Dial(Config{Group: "239.192.16.17", Port: 21536, DisableLoopback: disable}, l)
		if err != nil {
			t.Skipf("unable to open udp4 socket: %v", err)
		}
		on, err := s.conn.MulticastLoopback()
		require.NoError(t, err)
		require.Equal(t, !disable, on)
		require.NoError(t, s.Close())
	}
}

func TestTruncatedDatagrams(t *testing.T) {
	msg, err := proto.EncodeStatus(proto.Status{Timestamp: 42, ServiceName: "api", Status: proto.StatusUp})
	require.NoError(t, err)
	oversized := append(msg, make([]byte, 2*maxDatagramSize)...)

	decoded, err := proto.DecodeStatus(oversized[:maxDatagramSize])
	require.NoError(t, err)
	require.Equal(t, "api", decoded.ServiceName)

	garbage := bytes.Repeat([]byte{0xff}, 2*maxDatagramSize)
	_, err = proto.DecodeStatus(garbage[:maxDatagramSize])
	require.True(t, errors.Is(err, proto.ErrVersionMismatch), "%v", err)
}

// TestSendReceive exercises real sockets. Multicast routing is often missing
// in build sandboxes, so it only runs when asked to.
func TestSendReceive(t *testing.T) {
	if os.Getenv("HANDOVER_MULTICAST_TESTS") == "" {
		t.Skip("set HANDOVER_MULTICAST_TESTS=1 to run multicast socket tests")
	}
	cfg := Config{Group: "239.192.16.17", Port: 21536}

	r, err := Listen(cfg, l)
	require.NoError(t, err)
	defer r.Close()

	s, err := Dial(cfg, l)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Send([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	select {
	case d := <-r.Datagrams():
		require.NoError(t, d.Err)
		require.Equal(t, "hello world", string(d.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
	}

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// the channel is closed once the receiver is
	for range r.Datagrams() {
	}
}
