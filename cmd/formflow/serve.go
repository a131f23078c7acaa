package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/formflow/internal/cli"
	"github.com/aretw0/formflow/internal/logging"
	httpAdapter "github.com/aretw0/formflow/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the engine behind a JSON API over HTTP: stateless resolve, validate and
submit endpoints, server-side wizard sessions with an SSE change stream, and
/metrics when metrics are enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(cfg.Level())
		maxUpload, _ := cmd.Flags().GetInt64("max-upload")

		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("error initializing formflow: %w", err)
		}
		defer rt.Close()

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMaxUploadSize(maxUpload),
		}
		if rt.Registry != nil {
			opts = append(opts, httpAdapter.WithMetrics(rt.Registry))
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpAdapter.NewHandler(rt.Engine, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting formflow server", "addr", srv.Addr, "forms", cfg.FormsDir, "loader", cfg.Loader)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("formflow server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (FORMFLOW_ADDR, default :8080)")
	serveCmd.Flags().Int64("max-upload", 32<<20, "Maximum multipart upload size in bytes")
}
