// Package config загружает настройки dwloader.
//
// Источник настроек — INI-файл (по умолчанию config.ini) с обязательной
// секцией DATABASE. Дополнительные секции (CATALOG, STAGING, EVENTS,
// METRICS, SCHEDULE) необязательны. Часть значений может быть
// переопределена переменными окружения, в том числе из файла .env.
//
// Все ошибки загрузки и валидации оборачивают ErrConfiguration:
// такая ошибка фатальна и возникает до любой попытки подключения.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfiguration — настройки отсутствуют, не читаются или некорректны.
var ErrConfiguration = errors.New("configuration error")

// Значения по умолчанию.
const (
	DefaultPath              = "config.ini"
	DefaultDriver            = "ODBC Driver 17 for SQL Server"
	DefaultTrustedConnection = "yes"
	DefaultConnectTimeout    = 30 * time.Second
	DefaultBatchSize         = 500
	DefaultEncoding          = "utf-8"
	DefaultExchange          = "dwloader.runs"
	DefaultMetricsJob        = "dwloader"
	DefaultTimezone          = "UTC"
)

// Engine — СУБД, с которой работает загрузчик.
type Engine string

const (
	EngineSQLServer Engine = "sqlserver"
	EnginePostgres  Engine = "postgres"
	EngineSQLite    Engine = "sqlite"
)

// Config — полная конфигурация одного запуска.
type Config struct {
	// Path — путь к INI-файлу, из которого загружена конфигурация.
	Path string

	Database DatabaseConfig
	Catalog  CatalogConfig
	Staging  StagingConfig
	Events   EventsConfig
	Metrics  MetricsConfig
	Schedule ScheduleConfig
}

// DatabaseConfig — секция DATABASE.
type DatabaseConfig struct {
	Server            string
	Database          string
	TrustedConnection string
	Driver            string

	// User и Password используются только при trusted_connection != yes.
	User     string
	Password string
	Port     int

	// ConnectTimeout — единственный таймаут загрузчика: установление соединения.
	ConnectTimeout time.Duration

	// DSN полностью заменяет собранную строку подключения.
	DSN string
}

// CatalogConfig — секция CATALOG.
type CatalogConfig struct {
	// Path — YAML-каталог таблиц. Пусто — встроенный каталог.
	Path string
}

// StagingConfig — секция STAGING.
type StagingConfig struct {
	// Source — каталог с CSV или s3://bucket/prefix.
	Source    string
	Encoding  string
	BatchSize int

	// Endpoint и ключи нужны только для s3-источника.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// EventsConfig — секция EVENTS.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// MetricsConfig — секция METRICS.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// ScheduleConfig — секция SCHEDULE.
type ScheduleConfig struct {
	Cron      string
	Timezone  string
	Reprocess bool
	Force     bool
	Addr      string
}

// Engine определяет СУБД по значению driver.
//
// Для совместимости с исходными config.ini принимается имя ODBC-драйвера:
// всё, что упоминает SQL Server, считается sqlserver.
func (d DatabaseConfig) Engine() (Engine, error) {
	driver := strings.ToLower(strings.TrimSpace(d.Driver))
	switch {
	case driver == "":
		return EngineSQLServer, nil
	case strings.Contains(driver, "sql server"), driver == "sqlserver", driver == "mssql":
		return EngineSQLServer, nil
	case driver == "postgres", driver == "postgresql", driver == "pgx":
		return EnginePostgres, nil
	case driver == "sqlite", driver == "sqlite3":
		return EngineSQLite, nil
	default:
		return "", fmt.Errorf("%w: unsupported driver %q", ErrConfiguration, d.Driver)
	}
}

// Trusted возвращает true для интегрированной аутентификации.
func (d DatabaseConfig) Trusted() bool {
	switch strings.ToLower(strings.TrimSpace(d.TrustedConnection)) {
	case "yes", "true", "1", "sspi":
		return true
	default:
		return false
	}
}

// Validate проверяет параметры подключения без обращения к сети.
func (d DatabaseConfig) Validate() error {
	if errs := d.problems(); len(errs) > 0 {
		return fmt.Errorf("%w: validation failed:\n  - %s", ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}

func (d DatabaseConfig) problems() []string {
	var errs []string

	engine, err := d.Engine()
	if err != nil {
		errs = append(errs, fmt.Sprintf("driver %q is not supported", d.Driver))
	}

	if d.DSN == "" {
		if d.Server == "" && engine != EngineSQLite {
			errs = append(errs, "DATABASE.server is required")
		}
		if d.Database == "" {
			errs = append(errs, "DATABASE.database is required")
		}
		if !d.Trusted() && engine != EngineSQLite && d.User == "" {
			errs = append(errs, "DATABASE.user is required when trusted_connection is not yes")
		}
	}

	if d.ConnectTimeout <= 0 {
		errs = append(errs, "DATABASE.connect_timeout must be positive")
	}
	if d.Port < 0 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DATABASE.port (%d) must be 0-65535", d.Port))
	}
	return errs
}

// Validate проверяет всю конфигурацию и возвращает все найденные проблемы разом.
func (c *Config) Validate() error {
	errs := c.Database.problems()

	if c.Staging.BatchSize <= 0 {
		errs = append(errs, "STAGING.batch_size must be positive")
	}
	switch strings.ToLower(c.Staging.Encoding) {
	case "utf-8", "utf8", "windows-1252", "cp1252", "latin1", "iso-8859-1":
	default:
		errs = append(errs, fmt.Sprintf("STAGING.encoding (%q) must be one of: utf-8, windows-1252, latin1", c.Staging.Encoding))
	}

	if c.Events.AMQPURL != "" && c.Events.Exchange == "" {
		errs = append(errs, "EVENTS.exchange is required when amqp_url is set")
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("SCHEDULE.timezone (%q) is not a known location", c.Schedule.Timezone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: validation failed:\n  - %s", ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}

// String возвращает представление для логов. Пароль и DSN маскируются.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Database: {Server: %q, Database: %q, Driver: %q, Trusted: %v, User: %q, Password: [MASKED]",
		c.Database.Server, c.Database.Database, c.Database.Driver, c.Database.Trusted(), c.Database.User)
	if c.Database.DSN != "" {
		b.WriteString(", DSN: [MASKED]")
	}
	b.WriteString("}, ")
	fmt.Fprintf(&b, "Staging: {Source: %q, Encoding: %q, BatchSize: %d}, ",
		c.Staging.Source, c.Staging.Encoding, c.Staging.BatchSize)
	fmt.Fprintf(&b, "Events: {Enabled: %v}, Metrics: {Push: %v}",
		c.Events.AMQPURL != "", c.Metrics.PushgatewayURL != "")
	b.WriteString("}")
	return b.String()
}
