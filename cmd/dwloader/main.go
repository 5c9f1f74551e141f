// dwloader — загрузчик хранилища DataShop.
//
// Использование:
//
//	dwloader [--config FILE] [--catalog FILE] [--json] <command> [flags]
//
// Команды:
//
//	run         Загрузка INT → DW (verify → reset → процедура → сводка)
//	integrate   Перенос STG → INT
//	stage       Загрузка CSV в staging-таблицы
//	verify      Проверка предусловий
//	reset       Очистка хранилища
//	summary     Сводка последнего процесса
//	rejections  Частые причины отклонений
//	events      История запусков из RabbitMQ
//
// Код завершения: 0 — успех, 1 — любая ошибка.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/dwloader/internal/cli"
	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	config.LoadDotEnv()
	logger := telemetry.SetupLoggerTo(os.Stderr)

	var configPath, catalogPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "dwloader",
		Short:         "dwloader — DataShop warehouse loader",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("DWLOADER_CONFIG", config.DefaultPath), "Path to config.ini")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to a warehouse catalog YAML (overrides CATALOG.path)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	var app *cli.App
	appFn := func() (*cli.App, error) {
		if app != nil {
			return app, nil
		}
		a, err := cli.NewApp(cli.Options{
			ConfigPath:  configPath,
			CatalogPath: catalogPath,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		app = a
		return app, nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(appFn, outputFn),
		cli.NewIntegrateCmd(appFn, outputFn),
		cli.NewStageCmd(appFn, outputFn),
		cli.NewVerifyCmd(appFn, outputFn),
		cli.NewResetCmd(appFn, outputFn),
		cli.NewSummaryCmd(appFn, outputFn),
		cli.NewRejectionsCmd(appFn, outputFn),
		cli.NewEventsCmd(appFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if cerr := app.Close(); cerr != nil {
		logger.Warn("close", "error", cerr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
