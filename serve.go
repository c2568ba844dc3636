package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpAdapter "github.com/appliance-router/server/internal/transport/http"
	logx "github.com/appliance-router/server/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the router in server mode, exposing POST /chat, GET /healthz and GET /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		cfg, err := loadConfig(envFile)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.janitor != nil {
			go a.janitor(ctx)
		}

		srv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: httpAdapter.NewHandler(a.controller, httpAdapter.Options{
				AllowedOrigins: cfg.HTTP.AllowedOrigins,
				RequestTimeout: cfg.HTTP.RequestTimeout,
				Gatherer:       a.registry,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logx.Info().Str("addr", srv.Addr).Str("store", cfg.SessionStore.Backend).Msg("Starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
			logx.Info().Msg("Start shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Dur("timeout", shutdownTimeout).Msg("Graceful shutdown did not complete")
			return srv.Close()
		}
		logx.Info().Msg("Server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address, overrides HTTP_ADDR")
}
