package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/joho/godotenv"
)

// LoadDotEnv подгружает .env из текущего каталога, если он есть.
// Уже заданные переменные окружения не перезаписываются.
// Возвращает true, если файл был прочитан.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load читает INI-файл, применяет значения по умолчанию и
// переопределения из окружения, затем валидирует результат.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: config file %q not found: %v", ErrConfiguration, path, err)
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrConfiguration, path, err)
	}

	return build(file, path)
}

// Parse разбирает INI из памяти. path используется для относительных путей.
func Parse(data []byte, path string) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ini: %v", ErrConfiguration, err)
	}
	return build(file, path)
}

func build(file *ini.File, path string) (*Config, error) {
	db, err := file.GetSection("DATABASE")
	if err != nil {
		return nil, fmt.Errorf("%w: section [DATABASE] is missing in %q", ErrConfiguration, path)
	}

	var errs []string

	cfg := &Config{
		Path: path,
		Database: DatabaseConfig{
			Server:            value(db, "server", ""),
			Database:          value(db, "database", ""),
			TrustedConnection: value(db, "trusted_connection", DefaultTrustedConnection),
			Driver:            value(db, "driver", DefaultDriver),
			User:              value(db, "user", ""),
			Password:          value(db, "password", ""),
			DSN:               value(db, "dsn", ""),
			Port:              intValue(db, "port", 0, &errs),
			ConnectTimeout:    durationValue(db, "connect_timeout", DefaultConnectTimeout, &errs),
		},
	}

	cfg.Catalog.Path = value(file.Section("CATALOG"), "path", "")

	staging := file.Section("STAGING")
	cfg.Staging = StagingConfig{
		Source:    value(staging, "source", defaultDatasetDir(path)),
		Encoding:  value(staging, "encoding", DefaultEncoding),
		BatchSize: intValue(staging, "batch_size", DefaultBatchSize, &errs),
		Endpoint:  value(staging, "endpoint", ""),
		AccessKey: value(staging, "access_key", ""),
		SecretKey: value(staging, "secret_key", ""),
		UseSSL:    boolValue(staging, "use_ssl", true, &errs),
	}

	events := file.Section("EVENTS")
	cfg.Events = EventsConfig{
		AMQPURL:  value(events, "amqp_url", ""),
		Exchange: value(events, "exchange", DefaultExchange),
	}

	metrics := file.Section("METRICS")
	cfg.Metrics = MetricsConfig{
		PushgatewayURL: value(metrics, "pushgateway_url", ""),
		Job:            value(metrics, "job", DefaultMetricsJob),
	}

	schedule := file.Section("SCHEDULE")
	cfg.Schedule = ScheduleConfig{
		Cron:      value(schedule, "cron", ""),
		Timezone:  value(schedule, "timezone", DefaultTimezone),
		Reprocess: boolValue(schedule, "reprocess", false, &errs),
		Force:     boolValue(schedule, "force", false, &errs),
		Addr:      value(schedule, "addr", ":8085"),
	}

	applyEnv(cfg)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid values:\n  - %s", ErrConfiguration, strings.Join(errs, "\n  - "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv переопределяет значения переменными окружения.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("DWLOADER_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("DWLOADER_CATALOG"); v != "" {
		cfg.Catalog.Path = v
	}
}

// defaultDatasetDir — каталог DATASET рядом с каталогом конфигурации.
func defaultDatasetDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.Join(filepath.Dir(abs), "..", "DATASET")
}

// value возвращает значение ключа без пробелов по краям.
// fallback применяется только если ключ отсутствует.
func value(sec *ini.Section, key, fallback string) string {
	if !sec.HasKey(key) {
		return fallback
	}
	return strings.TrimSpace(sec.Key(key).String())
}

func intValue(sec *ini.Section, key string, fallback int, errs *[]string) int {
	raw := value(sec, key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s.%s=%q is not an integer", sec.Name(), key, raw))
		return fallback
	}
	return v
}

func boolValue(sec *ini.Section, key string, fallback bool, errs *[]string) bool {
	raw := value(sec, key, "")
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "yes", "y", "si", "s", "on":
		return true
	case "no", "n", "off":
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s.%s=%q is not a boolean", sec.Name(), key, raw))
		return fallback
	}
	return v
}

func durationValue(sec *ini.Section, key string, fallback time.Duration, errs *[]string) time.Duration {
	raw := value(sec, key, "")
	if raw == "" {
		return fallback
	}
	// Голое число — секунды, как timeout в исходных скриптах.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s.%s=%q is not a duration", sec.Name(), key, raw))
		return fallback
	}
	return d
}
