// dwloader-scheduler — запускает загрузку INT → DW по расписанию SCHEDULE.cron.
//
// Запуски выполняются строго по одному. Оператора нет, поэтому проблемы
// проверки предусловий прерывают запуск, если не задан SCHEDULE.force.
//
// HTTP: /healthz, /metrics, состояние расписания и ручной запуск (см. internal/api).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/dwloader/internal/api"
	"github.com/shaiso/dwloader/internal/cli"
	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/orchestrator"
	"github.com/shaiso/dwloader/internal/scheduler"
	"github.com/shaiso/dwloader/internal/telemetry"
)

func main() {
	config.LoadDotEnv()
	logger := telemetry.SetupLogger()

	var configPath, catalogPath string

	rootCmd := &cobra.Command{
		Use:           "dwloader-scheduler",
		Short:         "Run the warehouse load on a cron schedule",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logger, configPath, catalogPath)
		},
	}

	configDefault := config.DefaultPath
	if v := os.Getenv("DWLOADER_CONFIG"); v != "" {
		configDefault = v
	}
	rootCmd.Flags().StringVar(&configPath, "config", configDefault, "Path to config.ini")
	rootCmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to a warehouse catalog YAML")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("dwloader-scheduler failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func serve(ctx context.Context, logger *slog.Logger, configPath, catalogPath string) error {
	logger.Info("starting dwloader-scheduler")

	app, err := cli.NewApp(cli.Options{
		ConfigPath:  configPath,
		CatalogPath: catalogPath,
		Logger:      logger,
		In:          strings.NewReader(""),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	sc := app.Config.Schedule
	if sc.Cron == "" {
		return fmt.Errorf("%w: SCHEDULE.cron (or DWLOADER_CRON) is required", config.ErrConfiguration)
	}

	sched, err := scheduler.New(scheduler.Config{
		Runner:   app.Pipeline(ctx, scheduler.Confirmer(sc.Force)),
		Cron:     sc.Cron,
		Timezone: sc.Timezone,
		Options:  orchestrator.Options{Reprocess: sc.Reprocess},
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// HTTP: /healthz, /metrics, /api/v1/*
	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Scheduler: sched,
		Metrics:   app.Metrics.Handler(),
		Logger:    logger,
	}).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", sc.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sched.Start(ctx, scheduler.DefaultTickInterval)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	logger.Info("dwloader-scheduler stopped")
	return nil
}
