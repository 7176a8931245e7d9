package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/fanout"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

var (
	watchAddr string
	watchAll  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the review feed of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := watchAddr
		if addr == "" {
			addr = fmt.Sprintf("localhost:%d", cfg.HTTPPort)
		}

		bus := events.NewBus()
		bus.Subscribe(events.EventResolution, func(e events.Event) error {
			ev, ok := events.Resolution(e)
			if !ok {
				return nil
			}
			res := ev.Result
			prefix := string(e.Origin)
			if ev.Batch != "" {
				prefix = fmt.Sprintf("%s %s#%d", e.Origin, ev.Batch, ev.Row)
			}
			switch {
			case !res.OK():
				telemetry.Warnf("[%s] %s %s: %q", prefix, res.Status, res.Reason, res.Text)
			case res.NeedsReview:
				telemetry.Warnf("[%s] review fixture %d %s vs %s (%s): %q",
					prefix, res.FixtureID, res.HomeName, res.AwayName, res.LeagueName, res.Text)
			default:
				telemetry.Infof("[%s] fixture %d %s vs %s", prefix, res.FixtureID, res.HomeName, res.AwayName)
			}
			return nil
		})

		ctx, cancel := signalContext()
		defer cancel()

		telemetry.Infof("Watching %s (all=%v)", addr, watchAll)
		fanout.NewClient(addr, !watchAll, bus).ConnectWithRetry(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "server host:port (default localhost:HTTP_PORT)")
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "show every resolution, not only those needing review")
}
