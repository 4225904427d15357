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

const (
	// UpInterval is the period of UP status heartbeats.
	UpInterval = 10 * time.Second
	// DownInterval is the period of DOWN status heartbeats. It is much shorter
	// than UpInterval so peers see the transition before the process is killed.
	DownInterval = 100 * time.Millisecond
)

// StatusMessage is a decoded status heartbeat.
type StatusMessage = proto.Status

// ServiceStatus is UP or DOWN.
type ServiceStatus = proto.ServiceStatus

// The two statuses a StatusPublisher announces.
const (
	StatusUp   = proto.StatusUp
	StatusDown = proto.StatusDown
)

// StatusFunc receives decoded status heartbeats. It runs on the listening
// goroutine, so a slow StatusFunc delays the messages after it.
type StatusFunc func(ctx context.Context, msg StatusMessage) error

// StatusPublisher announces whether a service is serving, and on which
// addresses, and listens for the announcements of others.
type StatusPublisher struct {
	startedAt   time.Time
	serviceName string
	upMsg       []byte
	downMsg     []byte

	net      network
	sender   sender
	listener *listener

	mu     sync.Mutex
	closed bool
	up     *periodic
	down   *periodic

	closeOnce sync.Once
	closeErr  error

	l log15.Logger
}

// NewStatusPublisher constructs a StatusPublisher for serviceName, reachable
// on the given dotted-quad IPv4 addresses. Both heartbeats are encoded up
// front; values that do not fit the wire format are rejected here.
func NewStatusPublisher(startedAt time.Time, serviceName string, addresses []string, cfg Config, opts ...Option) (*StatusPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newStatusPublisher(multicastNetwork{cfg: cfg.transport()}, clock.RealClock{}, startedAt, serviceName, addresses, opts...)
}

func newStatusPublisher(n network, clk clock.WithTicker, startedAt time.Time, serviceName string, addresses []string, opts ...Option) (*StatusPublisher, error) {
	o := buildOptions(opts)
	l := o.logger(protocolStatus).New("service", serviceName)

	msg := proto.Status{
		Timestamp:   startedAt.UnixMilli(),
		ServiceName: serviceName,
		Addresses:   addresses,
		Status:      proto.StatusUp,
	}
	upMsg, err := proto.EncodeStatus(msg)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding UP status")
	}
	msg.Status = proto.StatusDown
	downMsg, err := proto.EncodeStatus(msg)
	if err != nil {
		return nil, errors.Wrap(err, "error encoding DOWN status")
	}

	s, err := n.Dial(l)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening status socket")
	}
	l.Info("using status broadcast address", "addr", n.String())

	return &StatusPublisher{
		startedAt:   startedAt,
		serviceName: serviceName,
		upMsg:       upMsg,
		downMsg:     downMsg,
		net:         n,
		sender:      s,
		listener:    newListener(n, protocolStatus, l),
		up:          newPeriodic(clk, UpInterval),
		down:        newPeriodic(clk, DownInterval),
		l:           l,
	}, nil
}

// StartBroadcastingUp announces UP now and then every UpInterval. It does
// nothing if UP is already being announced.
func (p *StatusPublisher) StartBroadcastingUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.l.Warn("not starting UP heartbeat because the publisher is closed")
		return
	}
	if p.up.Start(p.sendUp) {
		p.l.Info("UP heartbeat started", "timestamp", p.startedAt.UnixMilli(), "local", p.startedAt.Local().String())
	}
}

// StopBroadcastingUp stops announcing UP. Peers stop hearing UP heartbeats
// but are not told anything; StartBroadcastingDown does that.
func (p *StatusPublisher) StopBroadcastingUp() {
	p.up.Stop()
}

// StartBroadcastingDown announces DOWN now and then every DownInterval.
// Calling it again re-arms the interval.
func (p *StatusPublisher) StartBroadcastingDown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.l.Warn("not starting DOWN heartbeat because the publisher is closed")
		return
	}
	p.down.Restart(p.sendDown)
	p.l.Info("DOWN heartbeat started", "timestamp", p.startedAt.UnixMilli(), "local", p.startedAt.Local().String())
}

func (p *StatusPublisher) sendUp() {
	p.send(p.upMsg, proto.StatusUp)
}

func (p *StatusPublisher) sendDown() {
	p.send(p.downMsg, proto.StatusDown)
}

func (p *StatusPublisher) send(msg []byte, kind proto.ServiceStatus) {
	n, err := p.sender.Send(msg)
	if err != nil {
		p.l.Error("error sending status heartbeat", "status", kind, "err", err)
		metricHeartbeatSendErrors.WithLabelValues(protocolStatus).Inc()
		return
	}
	metricHeartbeatsSent.WithLabelValues(protocolStatus, string(kind)).Inc()
	if kind == proto.StatusDown {
		// ten per second, keep it out of the info log
		p.l.Debug("status heartbeat sent", "status", kind, "bytes", n)
		return
	}
	p.l.Info("status heartbeat sent", "status", kind, "timestamp", p.startedAt.UnixMilli(), "bytes", n)
}

// StartListening forwards every status heartbeat received, including this
// publisher's own, to onMessage. Datagrams that fail to decode, and errors
// or panics from onMessage, are logged and dropped. Cancelling ctx stops
// listening.
func (p *StatusPublisher) StartListening(ctx context.Context, onMessage StatusFunc) error {
	return p.listener.start(ctx, func(ctx context.Context, payload []byte, src net.Addr) {
		msg, err := proto.DecodeStatus(payload)
		if err != nil {
			p.l.Warn("discarding status heartbeat", "src", src, "err", err)
			metricDatagramsDiscarded.WithLabelValues(protocolStatus, "decode").Inc()
			return
		}
		metricDatagramsReceived.WithLabelValues(protocolStatus).Inc()
		if err := runStatusFunc(ctx, onMessage, msg); err != nil {
			p.l.Warn("error handling status heartbeat", "src", src, "peer", msg.ServiceName, "err", err)
			metricDatagramsDiscarded.WithLabelValues(protocolStatus, "callback").Inc()
		}
	})
}

func runStatusFunc(ctx context.Context, onMessage StatusFunc, msg StatusMessage) (err error) {
	if onMessage == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status callback panicked: %v", r)
		}
	}()
	return onMessage(ctx, msg)
}

// Close stops both heartbeats and releases both sockets. It is safe to call
// more than once.
func (p *StatusPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.down.Stop()
		p.up.Stop()
		p.mu.Unlock()

		lerr := p.listener.close()
		serr := p.sender.Close()
		if lerr != nil {
			p.closeErr = lerr
		} else {
			p.closeErr = serr
		}
	})
	return p.closeErr
}
