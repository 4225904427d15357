package cliconfig

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	NetworkMode   string   `toml:"network_mode"`
	Interface     string   `toml:"interface"`
	HandoverGroup string   `toml:"handover_group"`
	HandoverPort  int      `toml:"handover_port"`
	StatusGroup   string   `toml:"status_group"`
	StatusPort    int      `toml:"status_port"`
	ServiceName   string   `toml:"service_name"`
	Addresses     []string `toml:"addresses"`
	ID            string   `toml:"id"`
	MarkerPath    string   `toml:"marker_path"`
	DrainTimeout  string   `toml:"drain_timeout"`
	MetricsListen string   `toml:"metrics_listen"`
	LogLevel      string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("network-mode", fc.NetworkMode, &cfg.NetworkMode)
	s.setString("interface", fc.Interface, &cfg.Interface)
	s.setString("handover-group", fc.HandoverGroup, &cfg.HandoverGroup)
	s.setInt("handover-port", fc.HandoverPort, &cfg.HandoverPort)
	s.setString("status-group", fc.StatusGroup, &cfg.StatusGroup)
	s.setInt("status-port", fc.StatusPort, &cfg.StatusPort)
	s.setString("service-name", fc.ServiceName, &cfg.ServiceName)
	s.setList("addresses", fc.Addresses, &cfg.Addresses)
	s.setString("id", fc.ID, &cfg.ID)
	s.setString("marker-path", fc.MarkerPath, &cfg.MarkerPath)
	s.setString("metrics-listen", fc.MetricsListen, &cfg.MetricsListen)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	return s.setDuration("drain-timeout", fc.DrainTimeout, &cfg.DrainTimeout)
}
