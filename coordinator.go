package handover

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/handover/internal/proto"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"
)

// HeartbeatInterval is the period of handover heartbeats.
const HeartbeatInterval = 10 * time.Second

// ShutdownFunc drains the service. It is called at most once per process,
// after a newer instance has been observed. The supervisor kills the process
// if draining outlasts its handover timeout, so it should return well before.
type ShutdownFunc func(ctx context.Context) error

// Coordinator hands a service over from an old instance to a new one.
//
// Each instance broadcasts its startup time over a multicast group. An
// instance that hears a strictly later startup time knows it is the old one:
// it stops broadcasting, drains through its ShutdownFunc, and writes a
// completion marker for the supervisor. It does not exit; the supervisor
// stops the process once it sees the marker.
//
// When a service starts, it first creates a Coordinator and calls
// StartListening. When it is ready to accept connections, it calls
// StartBroadcasting, which tells the previous instance to step down. The two
// instances run concurrently for a while, so the service must tolerate that.
type Coordinator struct {
	startedAt time.Time
	timestamp int64
	heartbeat []byte

	net      network
	sender   sender
	listener *listener
	marker   *markerWriter

	stateLock sync.Mutex
	state     coordinatorState
	closed    bool
	ticker    *periodic

	// shutdownC is closed once the shutdown sequence has run to completion.
	shutdownC chan struct{}
	closeOnce sync.Once
	closeErr  error

	l log15.Logger
}

// New constructs a Coordinator for an instance that started at startedAt.
// The start time is broadcast with millisecond precision and never changes.
func New(startedAt time.Time, cfg Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newCoordinator(multicastNetwork{cfg: cfg.transport()}, clock.RealClock{}, startedAt, opts...)
}

func newCoordinator(n network, clk clock.WithTicker, startedAt time.Time, opts ...Option) (*Coordinator, error) {
	o := buildOptions(opts)
	l := o.logger(protocolHandover)

	s, err := n.Dial(l)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening heartbeat socket")
	}
	l.Info("using shutdown broadcast address", "addr", n.String())

	timestamp := startedAt.UnixMilli()
	return &Coordinator{
		startedAt: startedAt,
		timestamp: timestamp,
		heartbeat: proto.EncodeHandover(timestamp),
		net:       n,
		sender:    s,
		listener:  newListener(n, protocolHandover, l),
		marker:    &markerWriter{path: o.markerPath, clock: clk},
		state:     coordinatorStateActive,
		ticker:    newPeriodic(clk, HeartbeatInterval),
		shutdownC: make(chan struct{}),
		l:         l,
	}, nil
}

// StartedAt returns the startup time this instance broadcasts.
func (c *Coordinator) StartedAt() time.Time {
	return c.startedAt
}

// ShuttingDown reports whether a newer instance has been observed.
func (c *Coordinator) ShuttingDown() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.state == coordinatorStateShuttingDown
}

// Done returns a channel which is closed when the shutdown sequence has
// completed: the ShutdownFunc returned and the marker was written, or its
// write failed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.shutdownC
}

// StartBroadcasting sends a heartbeat now and then every HeartbeatInterval.
// It does nothing if already broadcasting or shutting down.
func (c *Coordinator) StartBroadcasting() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if c.state != coordinatorStateActive {
		c.l.Warn("not starting heartbeat because we're shutting down")
		return
	}
	if c.closed {
		c.l.Warn("not starting heartbeat because the coordinator is closed")
		return
	}
	if c.ticker.Start(c.sendHeartbeat) {
		c.l.Info("heartbeat started", "timestamp", c.timestamp, "local", c.startedAt.Local().String())
	}
}

func (c *Coordinator) sendHeartbeat() {
	n, err := c.sender.Send(c.heartbeat)
	if err != nil {
		c.l.Error("error sending heartbeat", "err", err)
		metricHeartbeatSendErrors.WithLabelValues(protocolHandover).Inc()
		return
	}
	metricHeartbeatsSent.WithLabelValues(protocolHandover, protocolHandover).Inc()
	c.l.Info("heartbeat sent", "timestamp", c.timestamp, "local", c.startedAt.Local().String(), "bytes", n)
}

// StartListening watches for heartbeats of other instances. When one with a
// later startup time arrives, onShutdown is called on its own goroutine with
// ctx, so heartbeats keep being consumed while the service drains. Cancelling
// ctx stops listening.
//
// Socket errors are logged and never stop the listener; enforcing a timeout
// is left to the supervisor.
func (c *Coordinator) StartListening(ctx context.Context, onShutdown ShutdownFunc) error {
	return c.listener.start(ctx, func(ctx context.Context, payload []byte, src net.Addr) {
		c.handleHeartbeat(ctx, payload, src, onShutdown)
	})
}

func (c *Coordinator) handleHeartbeat(ctx context.Context, payload []byte, src net.Addr, onShutdown ShutdownFunc) {
	msg, err := proto.DecodeHandover(payload)
	if err != nil {
		c.l.Warn("discarding heartbeat", "src", src, "err", err)
		metricDatagramsDiscarded.WithLabelValues(protocolHandover, "decode").Inc()
		return
	}
	metricDatagramsReceived.WithLabelValues(protocolHandover).Inc()

	// Our own heartbeats, and those of older instances, are ignored. Equal
	// timestamps never trigger a shutdown on either side.
	if msg.Timestamp <= c.timestamp {
		return
	}
	if !c.beginShutdown() {
		return
	}
	c.l.Info("shutting down, there's a newer instance running", "theirs", msg.Timestamp, "ours", c.timestamp, "src", src)
	metricShutdowns.Inc()
	go c.shutdown(ctx, onShutdown)
}

// beginShutdown moves to ShuttingDown and stops the heartbeat. It returns
// false if a shutdown already began.
func (c *Coordinator) beginShutdown() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if err := c.state.transitionTo(coordinatorStateShuttingDown); err != nil {
		return false
	}
	c.ticker.Stop()
	return true
}

func (c *Coordinator) shutdown(ctx context.Context, onShutdown ShutdownFunc) {
	defer close(c.shutdownC)

	// Draining should take less than the supervisor's handover timeout,
	// since the process is killed anyway once that is reached.
	if err := runShutdown(ctx, onShutdown); err != nil {
		c.l.Error("error draining, leaving it to the supervisor", "err", err)
	} else {
		c.l.Info("about to write the handover marker", "path", c.marker.path)
		if err := c.marker.write(); err != nil {
			// the supervisor kills the process after its timeout anyway
			c.l.Warn("error writing handover marker", "path", c.marker.path, "err", err)
		} else {
			c.l.Info("handover marker written", "path", c.marker.path)
		}
	}

	// We don't exit, so the container runtime doesn't restart the process.
	c.l.Info("waiting for shutdown")
	if err := c.listener.close(); err != nil {
		c.l.Warn("error closing heartbeat socket", "err", err)
	}
}

func runShutdown(ctx context.Context, onShutdown ShutdownFunc) (err error) {
	if onShutdown == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shutdown callback panicked: %v", r)
		}
	}()
	return onShutdown(ctx)
}

// Close stops the heartbeat and releases both sockets. A shutdown sequence
// already running is not interrupted. It is safe to call more than once.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.stateLock.Lock()
		c.closed = true
		c.ticker.Stop()
		c.stateLock.Unlock()

		lerr := c.listener.close()
		serr := c.sender.Close()
		if lerr != nil {
			c.closeErr = lerr
		} else {
			c.closeErr = serr
		}
	})
	return c.closeErr
}
