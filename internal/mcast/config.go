package mcast

import (
	"fmt"
	"net"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

// maxDatagramSize bounds a single read. Handover datagrams are far smaller;
// anything bigger is not ours. Longer datagrams are truncated to this size;
// the decoders read only a fixed prefix and reject the rest on the version
// or length checks.
const maxDatagramSize = 1500

// Config describes a multicast endpoint.
type Config struct {
	// Group is the IPv4 multicast group, e.g. 239.192.16.16.
	Group string
	// Port is the UDP port datagrams are sent to and received on.
	Port int
	// Interface, when set, scopes group membership and egress to the named
	// interface. When empty, the system default is used.
	Interface string
	// DisableLoopback stops the sender's own datagrams from being delivered
	// to receivers on the same host. Peers on one device rely on loopback, so
	// this is only useful in tests.
	DisableLoopback bool
}

func (c Config) groupAddr() (*net.UDPAddr, error) {
	ip := net.ParseIP(c.Group).To4()
	if ip == nil || !ip.IsMulticast() {
		return nil, errors.Errorf("%q is not an IPv4 multicast group", c.Group)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return nil, errors.Errorf("invalid port %d", c.Port)
	}
	return &net.UDPAddr{IP: ip, Port: c.Port}, nil
}

func (c Config) String() string {
	if c.Interface == "" {
		return fmt.Sprintf("%s:%d", c.Group, c.Port)
	}
	return fmt.Sprintf("%s:%d%%%s", c.Group, c.Port, c.Interface)
}

// resolveInterface looks up the interface to scope traffic to. A missing
// interface, or one without an IPv4 address, is logged and yields nil, which
// leaves the choice to the system.
func resolveInterface(l log15.Logger, name string) *net.Interface {
	if name == "" {
		return nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		l.Warn("network interface not found, using the default", "iface", name, "err", err)
		return nil
	}
	addr, err := interfaceIPv4(ifi)
	if err != nil {
		l.Warn("network interface has no IPv4 address, using the default", "iface", name, "err", err)
		return nil
	}
	l.Info("using multicast interface", "iface", name, "addr", addr)
	return ifi
}

func interfaceIPv4(ifi *net.Interface) (net.IP, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, errors.Errorf("no IPv4 address on %s", ifi.Name)
}
