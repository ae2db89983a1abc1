package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/livefire2015/ez-cards/src/api"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the card API and periodically sweep bill statuses so bills
close and turn overdue on time.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Duration("sweep-interval", time.Hour, "bill status sweep interval (0 disables)")
	_ = viper.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("sweep.interval", cmd.Flags().Lookup("sweep-interval"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(a.svc, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		a.logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Sweep.Interval > 0 {
		g.Go(func() error {
			runSweeps(gctx, a.svc.Bills, cfg.Sweep.Interval, logging.Component(a.logger, logging.ComponentBilling))
			return nil
		})
	}

	return g.Wait()
}

// runSweeps refreshes bill statuses once at start and then on every tick
// until ctx is done. Sweep errors are logged and do not stop the server.
func runSweeps(ctx context.Context, bills *services.BillingService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := bills.RefreshStatuses(ctx, time.Now()); err != nil && ctx.Err() == nil {
			logger.Error("bill status sweep failed", logging.FieldError, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
