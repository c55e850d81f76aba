package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"review-tracker-go/handlers"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the review tracker HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if opts.cfg.Env != "local" {
				gin.SetMode(gin.ReleaseMode)
			}
			apiHandler := handlers.NewAPIHandler(store, opts.logger)
			router := handlers.NewRouter(apiHandler, opts.logger)

			server := &http.Server{
				Addr:         fmt.Sprintf(":%s", opts.cfg.Server.Port),
				Handler:      router,
				ReadTimeout:  time.Duration(opts.cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(opts.cfg.Server.WriteTimeout) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				opts.logger.Info().Str("port", opts.cfg.Server.Port).Msg("server starting")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			opts.logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			opts.logger.Info().Msg("server exited gracefully")
			return nil
		},
	}
}
