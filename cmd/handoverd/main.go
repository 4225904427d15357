// Command handoverd takes part in a handover between the old and the new
// instance of a service, and watches status announcements on the network.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ngrok/handover/internal/cliconfig"
)

var longHelp = strings.TrimSpace(`
Coordinate the handover between the old and the new instance of a service
during a rolling update.

Each instance broadcasts its startup time over a local multicast group. An
instance that hears a later startup time drains, announces DOWN, and writes a
marker file telling the supervisor it may be stopped.

Configure via flags, HANDOVER_* environment variables, or a TOML file.
`)

var exampleUsage = strings.TrimSpace(`
  handoverd run --service-name api --addresses 172.10.0.4,192.168.0.1
  HANDOVER_NETWORK_MODE=host handoverd run --service-name api
  handoverd watch --status-port 1537
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "handoverd",
		Short:         "Coordinate the handover between an old and a new service instance",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to a TOML config file")
	flags.StringVar(&cfg.NetworkMode, "network-mode", cfg.NetworkMode, "bridge, or host to scope multicast to --interface")
	flags.StringVar(&cfg.Interface, "interface", cfg.Interface, "interface used in host network mode")
	flags.StringVar(&cfg.HandoverGroup, "handover-group", cfg.HandoverGroup, "multicast group for handover heartbeats")
	flags.IntVar(&cfg.HandoverPort, "handover-port", cfg.HandoverPort, "port for handover heartbeats")
	flags.StringVar(&cfg.StatusGroup, "status-group", cfg.StatusGroup, "multicast group for status heartbeats")
	flags.IntVar(&cfg.StatusPort, "status-port", cfg.StatusPort, "port for status heartbeats")
	flags.StringVar(&cfg.ID, "id", cfg.ID, "identifier attached to log lines (default: pid)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error or crit")

	// load resolves the configuration once flags are parsed: file first, then
	// environment, with explicitly set flags winning over both.
	load := func(cmd *cobra.Command) (log15.Logger, error) {
		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		if cfgPath != "" {
			if !cliconfig.FileExists(cfgPath) {
				return nil, fmt.Errorf("config file %s not found", cfgPath)
			}
			fc, err := cliconfig.LoadFileConfig(cfgPath)
			if err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return nil, err
			}
		}
		if err := cliconfig.ApplyEnvConfig(&cfg, changed, os.Getenv); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if cfg.ID == "" {
			cfg.ID = fmt.Sprintf("pid%d", os.Getpid())
		}

		l, err := cliconfig.Logger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		l.Info("configuration", "config", fmt.Sprintf("%+v", cfg))
		return l, nil
	}

	root.AddCommand(newRunCmd(&cfg, load), newWatchCmd(&cfg, load))
	return root
}
