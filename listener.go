package handover

import (
	"context"
	"net"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

// ErrClosed is returned when listening on a closed Coordinator or
// StatusPublisher.
var ErrClosed = errors.New("closed")

type datagramHandler func(ctx context.Context, payload []byte, src net.Addr)

// listener owns the receive side of a subprotocol: it binds once and feeds
// every datagram to a handler on a dedicated goroutine.
type listener struct {
	net      network
	protocol string
	l        log15.Logger

	mu     sync.Mutex
	r      receiver
	closed bool
}

func newListener(n network, protocol string, l log15.Logger) *listener {
	return &listener{net: n, protocol: protocol, l: l}
}

// start binds the socket and serves it until it is closed or ctx is done.
// Starting a listener twice is a no-op.
func (ln *listener) start(ctx context.Context, handle datagramHandler) error {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	if ln.closed {
		return ErrClosed
	}
	if ln.r != nil {
		ln.l.Warn("already listening")
		return nil
	}

	r, err := ln.net.Listen(ln.l)
	if err != nil {
		ln.l.Error("unable to listen", "addr", ln.net.String(), "err", err)
		return errors.Wrapf(err, "error listening on %s", ln.net)
	}
	ln.r = r

	served := make(chan struct{})
	go func() {
		defer close(served)
		ln.serve(ctx, r, handle)
	}()
	go func() {
		select {
		case <-ctx.Done():
			ln.l.Info("context done, closing socket")
			r.Close()
		case <-served:
		}
	}()
	return nil
}

func (ln *listener) serve(ctx context.Context, r receiver, handle datagramHandler) {
	for d := range r.Datagrams() {
		if d.Err != nil {
			// This could prevent the handover from behaving correctly. We could
			// exit here, but prefer to leave the actual handling to the supervisor.
			ln.l.Error("socket error", "err", d.Err)
			metricDatagramsDiscarded.WithLabelValues(ln.protocol, "socket").Inc()
			continue
		}
		handle(ctx, d.Payload, d.Src)
	}
	ln.l.Info("socket closed, no longer listening")
}

// close releases the socket and prevents any further start. It is safe to
// call more than once.
func (ln *listener) close() error {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	ln.closed = true
	if ln.r == nil {
		return nil
	}
	return ln.r.Close()
}
