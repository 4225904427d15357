package mcast

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// Datagram is one result of reading from a Receiver. Either Err is set, or
// Payload and Src are.
type Datagram struct {
	Payload []byte
	Src     net.Addr
	Err     error
}

// Receiver is a socket joined to a multicast group.
type Receiver struct {
	pc   net.PacketConn
	conn *ipv4.PacketConn
	c    chan Datagram
	done chan struct{}

	closeOnce sync.Once
	closeErr  error

	l log15.Logger
}

// Listen binds the configured port on all addresses and joins the group.
// The port is bound with address reuse, so several processes on one host may
// listen at once.
func Listen(cfg Config, l log15.Logger) (*Receiver, error) {
	group, err := cfg.groupAddr()
	if err != nil {
		return nil, err
	}
	l = l.New("group", cfg.String())

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, errors.Wrapf(err, "error binding port %d", cfg.Port)
	}
	conn := ipv4.NewPacketConn(pc)

	ifi := resolveInterface(l, cfg.Interface)
	if ifi != nil {
		if err := conn.SetMulticastInterface(ifi); err != nil {
			l.Warn("unable to set multicast interface", "iface", ifi.Name, "err", err)
		}
	}
	if err := conn.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "error joining group %s", group.IP)
	}

	r := &Receiver{
		pc:   pc,
		conn: conn,
		c:    make(chan Datagram, 16),
		done: make(chan struct{}),
		l:    l,
	}
	l.Info("listening", "addr", pc.LocalAddr())
	go r.readLoop()
	return r, nil
}

// Datagrams returns the datagrams received on the socket, in receipt order.
// The channel is closed once the receiver is closed.
func (r *Receiver) Datagrams() <-chan Datagram {
	return r.c
}

// LocalAddr returns the bound address.
func (r *Receiver) LocalAddr() net.Addr {
	return r.pc.LocalAddr()
}

// Close leaves the group and releases the socket. It is safe to call more
// than once.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

func (r *Receiver) readLoop() {
	defer close(r.c)
	buf := make([]byte, maxDatagramSize)
	var backoff readBackoff
	for {
		n, _, src, err := r.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if !r.deliver(Datagram{Err: err}) || !r.wait(backoff.next()) {
				return
			}
			continue
		}
		backoff.reset()

		payload := make([]byte, n)
		copy(payload, buf[:n])
		if !r.deliver(Datagram{Payload: payload, Src: src}) {
			return
		}
	}
}

func (r *Receiver) deliver(d Datagram) bool {
	select {
	case r.c <- d:
		return true
	case <-r.done:
		return false
	}
}

// wait pauses for d, returning false if the receiver is closed meanwhile.
func (r *Receiver) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.done:
		return false
	}
}

const (
	minReadBackoff = 10 * time.Millisecond
	maxReadBackoff = time.Second
)

// readBackoff spaces out reads after consecutive errors, doubling up to
// maxReadBackoff, so a broken socket does not spin.
type readBackoff struct {
	d time.Duration
}

func (b *readBackoff) next() time.Duration {
	switch {
	case b.d == 0:
		b.d = minReadBackoff
	case b.d < maxReadBackoff:
		b.d *= 2
		if b.d > maxReadBackoff {
			b.d = maxReadBackoff
		}
	}
	return b.d
}

func (b *readBackoff) reset() {
	b.d = 0
}
