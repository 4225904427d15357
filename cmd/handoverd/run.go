package main

import (
	"context"
	"net/http"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ngrok/handover"
	"github.com/ngrok/handover/internal/cliconfig"
)

type loader func(cmd *cobra.Command) (log15.Logger, error)

func newRunCmd(cfg *cliconfig.Config, load loader) *cobra.Command {
	var addresses string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Announce this instance and step down when a newer one appears",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addresses") {
				cfg.Addresses = cliconfig.SplitList(addresses)
			}
			l, err := load(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), *cfg, l)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "service name announced in status heartbeats")
	flags.StringVar(&addresses, "addresses", "", "comma separated IPv4 addresses announced in status heartbeats")
	flags.StringVar(&cfg.MarkerPath, "marker-path", cfg.MarkerPath, "file written once draining completes")
	flags.DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "how long to announce DOWN before reporting the drain complete")
	flags.StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "address to serve prometheus metrics on, e.g. :9090")
	return cmd
}

// run participates in a handover until ctx is done. Once a newer instance is
// seen it drains and then idles: exiting would have the container restarted,
// so stopping the process is left to the supervisor.
func run(ctx context.Context, cfg cliconfig.Config, l log15.Logger) error {
	startedAt := time.Now()
	opts := []handover.Option{
		handover.WithLogger(l),
		handover.WithID(cfg.ID),
		handover.WithMarkerPath(cfg.MarkerPath),
	}

	status, err := handover.NewStatusPublisher(startedAt, cfg.ServiceName, cfg.Addresses, cfg.StatusConfig(), opts...)
	if err != nil {
		return err
	}
	defer status.Close()

	coord, err := handover.New(startedAt, cfg.HandoverConfig(), opts...)
	if err != nil {
		return err
	}
	defer coord.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsListen != "" {
		srv := &http.Server{Addr: cfg.MetricsListen, Handler: promhttp.Handler()}
		g.Go(func() error {
			l.Info("serving metrics", "addr", cfg.MetricsListen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := status.StartListening(ctx, logPeer(l)); err != nil {
		// we can still announce ourselves
		l.Warn("not watching peer status", "err", err)
	}
	if err := coord.StartListening(ctx, drain(status, cfg.DrainTimeout, l)); err != nil {
		// without a listener the supervisor's timeout is what stops us
		l.Error("not listening for newer instances", "err", err)
	}

	// ready to serve
	coord.StartBroadcasting()
	status.StartBroadcastingUp()

	g.Go(func() error {
		select {
		case <-coord.Done():
			l.Info("handover complete, waiting to be stopped")
		case <-ctx.Done():
		}
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// drain announces DOWN for the drain timeout. A real service would wait for
// in-flight work here.
func drain(status *handover.StatusPublisher, timeout time.Duration, l log15.Logger) handover.ShutdownFunc {
	return func(ctx context.Context) error {
		status.StopBroadcastingUp()
		status.StartBroadcastingDown()
		l.Info("draining", "timeout", timeout)
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func logPeer(l log15.Logger) handover.StatusFunc {
	return func(ctx context.Context, msg handover.StatusMessage) error {
		l.Debug("peer status", "service", msg.ServiceName, "status", msg.Status, "addresses", msg.Addresses, "started", time.UnixMilli(msg.Timestamp).String())
		return nil
	}
}
