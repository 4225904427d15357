package cliconfig

// Environment variables understood by handoverd. The first six are the ones
// used by earlier releases and keep their names.
const (
	EnvShutdownPort     = "SHUTDOWN_PORT"
	EnvShutdownAddress  = "SHUTDOWN_BROADCAST_ADDRESS"
	EnvStatusPort       = "HANDOVER_STATUS_PORT"
	EnvStatusAddress    = "HANDOVER_STATUS_BROADCAST_ADDRESS"
	EnvNetworkMode      = "HANDOVER_NETWORK_MODE"
	EnvNetworkInterface = "NETWORK_INTERFACE"
	EnvServiceName      = "HANDOVER_SERVICE_NAME"
	EnvAddresses        = "HANDOVER_ADDRESSES"
	EnvID               = "HANDOVER_ID"
	EnvMarkerPath       = "HANDOVER_MARKER_PATH"
	EnvDrainTimeout     = "HANDOVER_DRAIN_TIMEOUT"
	EnvMetricsListen    = "HANDOVER_METRICS_LISTEN"
	EnvLogLevel         = "HANDOVER_LOG_LEVEL"
)

// ApplyEnvConfig applies environment variables to cfg. They override the
// file config but are overridden by flags (checked via changed).
func ApplyEnvConfig(cfg *Config, changed map[string]bool, getenv func(string) string) error {
	s := newConfigSetter(changed)

	s.setString("network-mode", getenv(EnvNetworkMode), &cfg.NetworkMode)
	s.setString("interface", getenv(EnvNetworkInterface), &cfg.Interface)
	s.setString("handover-group", getenv(EnvShutdownAddress), &cfg.HandoverGroup)
	s.setString("status-group", getenv(EnvStatusAddress), &cfg.StatusGroup)
	s.setString("service-name", getenv(EnvServiceName), &cfg.ServiceName)
	s.setList("addresses", SplitList(getenv(EnvAddresses)), &cfg.Addresses)
	s.setString("id", getenv(EnvID), &cfg.ID)
	s.setString("marker-path", getenv(EnvMarkerPath), &cfg.MarkerPath)
	s.setString("metrics-listen", getenv(EnvMetricsListen), &cfg.MetricsListen)
	s.setString("log-level", getenv(EnvLogLevel), &cfg.LogLevel)

	if err := s.setIntFromString("handover-port", getenv(EnvShutdownPort), &cfg.HandoverPort); err != nil {
		return err
	}
	if err := s.setIntFromString("status-port", getenv(EnvStatusPort), &cfg.StatusPort); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", getenv(EnvDrainTimeout), &cfg.DrainTimeout); err != nil {
		return err
	}
	return nil
}
