package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nstogner/cortex/pkg/layer"
	"github.com/nstogner/cortex/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Layers.Dir != "" {
			w, err := layer.NewWatcher(a.catalog, cfg.Layers.Dir)
			if err != nil {
				return err
			}
			if err := w.LoadAll(ctx); err != nil {
				return err
			}
			go func() {
				if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("Layer watcher stopped", "error", err)
				}
			}()
		}

		// Start controller in background.
		go func() {
			if err := a.controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Controller stopped unexpectedly", "error", err)
			}
		}()

		srv := server.New(server.Deps{
			Sessions:   a.store,
			Controller: a.controller,
			Memory:     a.memory,
			Artifacts:  a.artifacts,
			Layers:     a.catalog,
			Tools:      a.registry,
			Provider:   a.provider,
		})
		errc := make(chan error, 1)
		go func() { errc <- srv.Start(cfg.Server.Addr) }()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
