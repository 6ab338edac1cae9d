package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/app"
	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace API, the collaborator webhook and the progress stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, false, func(c *app.Container) error {
				if addr == "" {
					addr = c.Config.Server.Addr
				}
				return serve(cmd.Context(), c, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to SERVER_ADDR)")
	return cmd
}

func serve(ctx context.Context, c *app.Container, addr string) error {
	logger := c.Logger
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		c.Hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if c.Models.Available() {
		g.Go(func() error {
			ticker := time.NewTicker(constants.CircuitBreakerConfig.HealthCheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if !c.Models.CheckHealth(gctx) {
						logger.Warn("AI providers unhealthy", zap.String("circuit", c.Models.CircuitStatus().State.String()))
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
