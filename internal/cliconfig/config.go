package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/handover"
)

// Config holds CLI configuration for handoverd.
type Config struct {
	NetworkMode string
	Interface   string

	HandoverGroup string
	HandoverPort  int
	StatusGroup   string
	StatusPort    int

	ServiceName string
	Addresses   []string
	ID          string

	MarkerPath   string
	DrainTimeout time.Duration

	MetricsListen string
	LogLevel      string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		NetworkMode:   string(handover.NetworkModeBridge),
		Interface:     handover.DefaultInterface,
		HandoverGroup: handover.DefaultGroup,
		HandoverPort:  handover.DefaultHandoverPort,
		StatusGroup:   handover.DefaultGroup,
		StatusPort:    handover.DefaultStatusPort,
		MarkerPath:    handover.DefaultMarkerPath,
		DrainTimeout:  5 * time.Second,
		LogLevel:      "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := handover.ParseNetworkMode(c.NetworkMode); err != nil {
		return err
	}
	if err := c.HandoverConfig().Validate(); err != nil {
		return fmt.Errorf("handover: %w", err)
	}
	if err := c.StatusConfig().Validate(); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("drain timeout must not be negative")
	}
	if _, err := log15.LvlFromString(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// HandoverConfig returns the network configuration of the handover protocol.
func (c *Config) HandoverConfig() handover.Config {
	return handover.Config{
		Group:     c.HandoverGroup,
		Port:      c.HandoverPort,
		Mode:      handover.NetworkMode(c.NetworkMode),
		Interface: c.Interface,
	}
}

// StatusConfig returns the network configuration of the status protocol.
func (c *Config) StatusConfig() handover.Config {
	return handover.Config{
		Group:     c.StatusGroup,
		Port:      c.StatusPort,
		Mode:      handover.NetworkMode(c.NetworkMode),
		Interface: c.Interface,
	}
}

// Logger builds the root logger, writing logfmt to stderr.
func Logger(level string) (log15.Logger, error) {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return nil, err
	}
	l := log15.New()
	l.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
	return l, nil
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setList(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setInt(flag, i, dst)
	return nil
}
