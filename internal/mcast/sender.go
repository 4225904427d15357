package mcast

import (
	"net"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

const writeTimeout = time.Second

// Sender writes datagrams to a multicast group.
type Sender struct {
	conn  *ipv4.PacketConn
	group *net.UDPAddr

	// writes share the deadline on conn
	mu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Dial opens an unbound socket for sending to the configured group. Datagrams
// are not routed beyond the local network.
func Dial(cfg Config, l log15.Logger) (*Sender, error) {
	group, err := cfg.groupAddr()
	if err != nil {
		return nil, err
	}
	l = l.New("group", cfg.String())

	pc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, errors.Wrap(err, "error opening send socket")
	}
	conn := ipv4.NewPacketConn(pc)
	if err := conn.SetMulticastTTL(1); err != nil {
		l.Warn("unable to set multicast ttl", "err", err)
	}
	if err := conn.SetMulticastLoopback(!cfg.DisableLoopback); err != nil {
		l.Warn("unable to set multicast loopback", "err", err)
	}
	if ifi := resolveInterface(l, cfg.Interface); ifi != nil {
		if err := conn.SetMulticastInterface(ifi); err != nil {
			l.Warn("unable to set multicast interface", "iface", ifi.Name, "err", err)
		}
	}
	return &Sender{conn: conn, group: group}, nil
}

// Send writes b to the group and returns the number of bytes sent.
func (s *Sender) Send(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, err
	}
	n, err := s.conn.WriteTo(b, nil, s.group)
	if err != nil {
		return n, errors.Wrapf(err, "error sending to %s", s.group)
	}
	return n, nil
}

// Close releases the socket. It is safe to call more than once.
func (s *Sender) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
