package repo

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/shaiso/dwloader/internal/config"
)

const applicationName = "dwloader"

// BuildDSN собирает строку подключения для драйвера выбранной СУБД.
// Явно заданный DATABASE.dsn возвращается без изменений.
func BuildDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	engine, err := cfg.Engine()
	if err != nil {
		return "", err
	}

	switch engine {
	case config.EngineSQLServer:
		return sqlServerDSN(cfg), nil
	case config.EnginePostgres:
		return postgresDSN(cfg), nil
	case config.EngineSQLite:
		return sqliteDSN(cfg), nil
	default:
		return "", fmt.Errorf("%w: unsupported engine %q", config.ErrConfiguration, engine)
	}
}

// sqlServerDSN — sqlserver://[user:pass@]host[:port][/instance]?database=...
//
// Имя сервера вида HOST\INSTANCE раскладывается на хост и именованный экземпляр.
// При trusted_connection=yes учётные данные не передаются, драйвер использует
// интегрированную аутентификацию.
func sqlServerDSN(cfg config.DatabaseConfig) string {
	host, instance, _ := strings.Cut(cfg.Server, `\`)
	if cfg.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}

	u := &url.URL{Scheme: "sqlserver", Host: host}
	if instance != "" {
		u.Path = "/" + instance
	}
	if !cfg.Trusted() && cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	q := url.Values{}
	q.Set("database", cfg.Database)
	q.Set("connection timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	q.Set("app name", applicationName)
	u.RawQuery = q.Encode()

	return u.String()
}

func postgresDSN(cfg config.DatabaseConfig) string {
	host := cfg.Server
	if cfg.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}

	u := &url.URL{Scheme: "postgres", Host: host, Path: "/" + cfg.Database}
	if cfg.User != "" {
		if cfg.Trusted() {
			u.User = url.User(cfg.User)
		} else {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
	}

	q := url.Values{}
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	q.Set("application_name", applicationName)
	u.RawQuery = q.Encode()

	return u.String()
}

// sqliteDSN — файл БД с включёнными внешними ключами (параметры modernc.org/sqlite).
func sqliteDSN(cfg config.DatabaseConfig) string {
	return "file:" + cfg.Database + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
