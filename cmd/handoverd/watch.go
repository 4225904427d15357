package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngrok/handover"
	"github.com/ngrok/handover/internal/cliconfig"
)

func newWatchCmd(cfg *cliconfig.Config, load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the status heartbeats seen on the network",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := load(cmd)
			if err != nil {
				return err
			}
			// the publisher only listens, its own heartbeat is never sent
			status, err := handover.NewStatusPublisher(time.Now(), "handoverd-watch", nil, cfg.StatusConfig(),
				handover.WithLogger(l), handover.WithID(cfg.ID))
			if err != nil {
				return err
			}
			defer status.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if err := status.StartListening(ctx, printStatus(out)); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}

func printStatus(w io.Writer) handover.StatusFunc {
	return func(ctx context.Context, msg handover.StatusMessage) error {
		_, err := fmt.Fprintln(w, formatStatus(msg))
		return err
	}
}

func formatStatus(msg handover.StatusMessage) string {
	addrs := "-"
	if len(msg.Addresses) > 0 {
		addrs = strings.Join(msg.Addresses, ",")
	}
	started := time.UnixMilli(msg.Timestamp).UTC().Format(time.RFC3339Nano)
	return fmt.Sprintf("%-4s %s %s started=%s", msg.Status, msg.ServiceName, addrs, started)
}
