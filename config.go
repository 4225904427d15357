package handover

import (
	"github.com/ngrok/handover/internal/mcast"
	"github.com/pkg/errors"
)

// NetworkMode selects how multicast traffic is scoped.
type NetworkMode string

const (
	// NetworkModeBridge listens on all interfaces. In a bridge-mode container
	// network the group is private to the device, so nothing more is needed.
	NetworkModeBridge NetworkMode = "bridge"
	// NetworkModeHost scopes membership and egress to a single interface. Use
	// it when the container shares the host network: otherwise every device of
	// a fleet on the same LAN would share the group, one instance would be
	// picked as the newest fleet-wide, and the rest would restart forever.
	NetworkModeHost NetworkMode = "host"
)

const (
	// DefaultGroup lies in the IPv4 Organization Local Scope, 239.192.0.0/14,
	// per RFC 2365.
	DefaultGroup = "239.192.16.16"
	// DefaultHandoverPort carries handover heartbeats.
	DefaultHandoverPort = 1536
	// DefaultStatusPort carries status heartbeats.
	DefaultStatusPort = 1537
	// DefaultInterface is the local bridge used in host mode.
	DefaultInterface = "supervisor0"
)

// ParseNetworkMode parses "bridge" or "host". The empty string is bridge.
func ParseNetworkMode(s string) (NetworkMode, error) {
	switch NetworkMode(s) {
	case "", NetworkModeBridge:
		return NetworkModeBridge, nil
	case NetworkModeHost:
		return NetworkModeHost, nil
	}
	return "", errors.Errorf("unknown network mode %q, expected %q or %q", s, NetworkModeBridge, NetworkModeHost)
}

// Config is the network configuration of a single subprotocol.
type Config struct {
	Group string
	Port  int
	Mode  NetworkMode
	// Interface is only used in host mode. It defaults to DefaultInterface.
	Interface string
}

// DefaultHandoverConfig returns the configuration used by a Coordinator
// unless told otherwise.
func DefaultHandoverConfig() Config {
	return Config{
		Group:     DefaultGroup,
		Port:      DefaultHandoverPort,
		Mode:      NetworkModeBridge,
		Interface: DefaultInterface,
	}
}

// DefaultStatusConfig returns the configuration used by a StatusPublisher
// unless told otherwise.
func DefaultStatusConfig() Config {
	cfg := DefaultHandoverConfig()
	cfg.Port = DefaultStatusPort
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseNetworkMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.Group == "" {
		return errors.New("multicast group is required")
	}
	return nil
}

func (c Config) transport() mcast.Config {
	cfg := mcast.Config{Group: c.Group, Port: c.Port}
	if c.Mode == NetworkModeHost {
		cfg.Interface = c.Interface
		if cfg.Interface == "" {
			cfg.Interface = DefaultInterface
		}
	}
	return cfg
}
