package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CMCFame/parseteamsapifb/internal/app"
	"github.com/CMCFame/parseteamsapifb/internal/config"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

var (
	tablesPath  string
	tieBreak    bool
	window      int
	orientation string
	timezone    string
	logLevel    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "fixtures",
	Short:         "Resolve Spanish match descriptions to API-Football fixtures",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		flags := cmd.Flags()
		if flags.Changed("tables") {
			cfg.TablesPath = tablesPath
		}
		if flags.Changed("tie-break") {
			cfg.TieBreak = tieBreak
		}
		if flags.Changed("window") {
			cfg.WindowMinutes = window
		}
		if flags.Changed("orientation") {
			cfg.Orientation = orientation
		}
		if flags.Changed("tz") {
			cfg.Timezone = timezone
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		telemetry.InitWithFile(telemetry.ParseLogLevel(cfg.LogLevel), cfg.LogFile)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&tablesPath, "tables", "", "YAML tables file (default: embedded tables)")
	pf.BoolVar(&tieBreak, "tie-break", false, "break near-ties with head-to-head history")
	pf.IntVar(&window, "window", 0, "kick-off window in minutes (default from tables)")
	pf.StringVar(&orientation, "orientation", "", "strict or either (default from tables)")
	pf.StringVar(&timezone, "tz", "", "calendar timezone of the descriptions")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildApp wires the resolver from the merged env/flag configuration.
func buildApp() (*app.App, error) {
	a, err := app.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			telemetry.Infof("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
