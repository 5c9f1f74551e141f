package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/mq"
	"github.com/shaiso/dwloader/internal/orchestrator"
	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/staging"
	"github.com/shaiso/dwloader/internal/telemetry"
)

// Options — параметры создания App, приходят из флагов корневой команды.
type Options struct {
	ConfigPath  string
	CatalogPath string

	Logger *slog.Logger

	// In — ввод для подтверждений (default: os.Stdin).
	In io.Reader
}

// App — зависимости команд, собранные из конфигурации.
type App struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	In      io.Reader

	mqConn *mq.Connection
}

// NewApp читает конфигурацию и каталог.
// Флаг --catalog имеет приоритет над CATALOG.path.
func NewApp(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	catalogPath := opts.CatalogPath
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}

	cat := catalog.Default()
	if catalogPath != "" {
		if cat, err = catalog.Load(catalogPath); err != nil {
			return nil, err
		}
	}

	in := opts.In
	if in == nil {
		in = os.Stdin
	}

	logger.Debug("configuration loaded", "config", cfg.String(), "catalog", catalogPath)

	return &App{
		Config:  cfg,
		Catalog: cat,
		Metrics: telemetry.NewMetrics(),
		Logger:  logger,
		In:      in,
	}, nil
}

// Connect открывает сессию с хранилищем.
func (a *App) Connect(ctx context.Context) (*repo.Session, error) {
	return repo.Connect(ctx, a.Config.Database, a.Logger)
}

// Dialect возвращает диалект настроенной СУБД без подключения.
func (a *App) Dialect() (repo.Dialect, error) {
	engine, err := a.Config.Database.Engine()
	if err != nil {
		return nil, err
	}
	return repo.DialectFor(engine), nil
}

// Pipeline собирает конвейер. Публикация событий подключается, если настроен EVENTS.amqp_url.
func (a *App) Pipeline(ctx context.Context, confirmer orchestrator.Confirmer) *orchestrator.Pipeline {
	cfg := orchestrator.Config{
		Catalog:   a.Catalog,
		Connect:   a.Connect,
		Confirmer: confirmer,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	}
	if pub := a.Publisher(ctx); pub != nil {
		cfg.Events = pub
	}
	return orchestrator.New(cfg)
}

// Operations возвращает конвейер для отдельных операций (verify, reset, summary)
// без публикации событий.
func (a *App) Operations() *orchestrator.Pipeline {
	return orchestrator.New(orchestrator.Config{
		Catalog: a.Catalog,
		Connect: a.Connect,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	})
}

// Stager собирает загрузчик staging-таблиц.
func (a *App) Stager() (*staging.Loader, error) {
	src, err := staging.NewSource(a.Config.Staging)
	if err != nil {
		return nil, err
	}
	return staging.New(staging.Config{
		Catalog:   a.Catalog,
		Source:    src,
		Encoding:  a.Config.Staging.Encoding,
		BatchSize: a.Config.Staging.BatchSize,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})
}

// MQ возвращает соединение с RabbitMQ, открывая его при первом вызове.
func (a *App) MQ() (*mq.Connection, error) {
	if a.mqConn != nil {
		return a.mqConn, nil
	}
	if a.Config.Events.AMQPURL == "" {
		return nil, fmt.Errorf("%w: EVENTS.amqp_url (or RABBITMQ_URL) is not set", config.ErrConfiguration)
	}

	conn, err := mq.NewConnection(a.Config.Events.AMQPURL, "dwloader", a.Logger)
	if err != nil {
		return nil, err
	}
	a.mqConn = conn
	return conn, nil
}

// Publisher возвращает издателя событий или nil, если события не настроены.
// Недоступный брокер не мешает запуску: событие просто не будет опубликовано.
func (a *App) Publisher(ctx context.Context) *mq.Publisher {
	if a.Config.Events.AMQPURL == "" {
		return nil
	}

	conn, err := a.MQ()
	if err != nil {
		a.Logger.Warn("events disabled: rabbitmq unavailable", "error", err)
		return nil
	}

	exchange := mq.Exchange(a.Config.Events.Exchange)
	if err := mq.SetupTopology(ctx, conn, exchange); err != nil {
		a.Logger.Warn("events disabled: setup topology", "error", err)
		return nil
	}
	return mq.NewPublisher(conn, exchange, a.Logger)
}

// PushMetrics отправляет метрики запуска в Pushgateway, если он настроен.
func (a *App) PushMetrics(ctx context.Context) {
	url := a.Config.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	if err := a.Metrics.Push(ctx, url, a.Config.Metrics.Job); err != nil {
		a.Logger.Warn("push metrics", "pushgateway", url, "error", err)
	}
}

// Close освобождает соединения App.
func (a *App) Close() error {
	if a == nil || a.mqConn == nil {
		return nil
	}
	err := a.mqConn.Close()
	a.mqConn = nil
	return err
}
