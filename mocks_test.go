package handover

import (
	"net"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/handover/internal/mcast"
)

// memBus is an in-memory multicast group. Every datagram sent by any of its
// senders is delivered to every open receiver, including the sender's own.
type memBus struct {
	mu        sync.Mutex
	receivers map[*memReceiver]struct{}
	dialErr   error
	listenErr error
	sendErr   error
}

func newMemBus() *memBus {
	return &memBus{receivers: map[*memReceiver]struct{}{}}
}

var memAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1536}

func (b *memBus) Dial(l log15.Logger) (sender, error) {
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	return &memSender{bus: b}, nil
}

func (b *memBus) Listen(l log15.Logger) (receiver, error) {
	if b.listenErr != nil {
		return nil, b.listenErr
	}
	r := &memReceiver{bus: b, c: make(chan mcast.Datagram, 64)}
	b.mu.Lock()
	b.receivers[r] = struct{}{}
	b.mu.Unlock()
	return r, nil
}

func (b *memBus) String() string {
	return "mem"
}

// inject delivers d to every receiver as though it came off the wire.
func (b *memBus) inject(d mcast.Datagram) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for r := range b.receivers {
		select {
		case r.c <- d:
		default:
		}
	}
}

func (b *memBus) listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

type memSender struct {
	bus *memBus
}

func (s *memSender) Send(p []byte) (int, error) {
	if s.bus.sendErr != nil {
		return 0, s.bus.sendErr
	}
	payload := make([]byte, len(p))
	copy(payload, p)
	s.bus.inject(mcast.Datagram{Payload: payload, Src: memAddr})
	return len(p), nil
}

func (s *memSender) Close() error {
	return nil
}

type memReceiver struct {
	bus       *memBus
	c         chan mcast.Datagram
	closeOnce sync.Once
}

func (r *memReceiver) Datagrams() <-chan mcast.Datagram {
	return r.c
}

func (r *memReceiver) Close() error {
	r.closeOnce.Do(func() {
		r.bus.mu.Lock()
		delete(r.bus.receivers, r)
		close(r.c)
		r.bus.mu.Unlock()
	})
	return nil
}
