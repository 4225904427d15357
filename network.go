package handover

import (
	"github.com/inconshreveable/log15"
	"github.com/ngrok/handover/internal/mcast"
)

type sender interface {
	Send(b []byte) (int, error)
	Close() error
}

type receiver interface {
	Datagrams() <-chan mcast.Datagram
	Close() error
}

// network opens the sockets of one subprotocol. Tests substitute an
// in-memory implementation.
type network interface {
	Dial(l log15.Logger) (sender, error)
	Listen(l log15.Logger) (receiver, error)
	String() string
}

type multicastNetwork struct {
	cfg mcast.Config
}

func (n multicastNetwork) Dial(l log15.Logger) (sender, error) {
	s, err := mcast.Dial(n.cfg, l)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (n multicastNetwork) Listen(l log15.Logger) (receiver, error) {
	r, err := mcast.Listen(n.cfg, l)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (n multicastNetwork) String() string {
	return n.cfg.String()
}
