package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/CMCFame/parseteamsapifb/internal/adapters/inbound/http_api"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolver over HTTP with a WebSocket review feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.HTTPPort = servePort
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		handler := http_api.NewHandler(a.Resolver, a.Bus).WithFeed(a.Feed.HandleWS)
		if a.Store != nil {
			handler.WithReview(a.Store)
		}
		mux := http.NewServeMux()
		handler.RegisterRoutes(mux)

		addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
		server := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute, // large /resolve batches
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
		telemetry.Infof("HTTP API listening on %q", addr)

		ctx, cancel := signalContext()
		defer cancel()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("HTTP server: %w", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)

		m := &telemetry.Metrics
		telemetry.Infof("Shutdown complete  resolves=%d  ok=%d  not_found=%d  review=%d  fetches=%d",
			m.ResolveCalls.Value(), m.ResolveOK.Value(), m.ResolveNotFound.Value(),
			m.NeedsReview.Value(), m.UpstreamFetches.Value())
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8787, "listen port (overrides HTTP_PORT)")
}
