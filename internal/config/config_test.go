package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("[DATABASE]\nserver = localhost\ndatabase = DataShop\n"), "config.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Database.Server != "localhost" {
		t.Errorf("Server = %q, want %q", cfg.Database.Server, "localhost")
	}
	if cfg.Database.TrustedConnection != "yes" {
		t.Errorf("TrustedConnection = %q, want %q", cfg.Database.TrustedConnection, "yes")
	}
	if cfg.Database.Driver != DefaultDriver {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, DefaultDriver)
	}
	if cfg.Database.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v, want 30s", cfg.Database.ConnectTimeout)
	}
	if cfg.Staging.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.Staging.BatchSize, DefaultBatchSize)
	}
	if cfg.Events.Exchange != DefaultExchange {
		t.Errorf("Exchange = %q, want %q", cfg.Events.Exchange, DefaultExchange)
	}
	if !strings.HasSuffix(cfg.Staging.Source, "DATASET") {
		t.Errorf("Staging.Source = %q, want DATASET dir", cfg.Staging.Source)
	}

	engine, err := cfg.Database.Engine()
	if err != nil {
		t.Fatalf("Engine() error = %v", err)
	}
	if engine != EngineSQLServer {
		t.Errorf("Engine() = %q, want %q", engine, EngineSQLServer)
	}
}

func TestParse_TrimsValues(t *testing.T) {
	cfg, err := Parse([]byte("[DATABASE]\nserver =   srv01  \ndatabase = DataShop \ntrusted_connection = no\nuser = etl\n"), "config.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Database.Server != "srv01" {
		t.Errorf("Server = %q, want %q", cfg.Database.Server, "srv01")
	}
	if cfg.Database.Trusted() {
		t.Error("Trusted() should be false for trusted_connection = no")
	}
}

func TestParse_MissingSection(t *testing.T) {
	_, err := Parse([]byte("[OTHER]\nkey = value\n"), "config.ini")
	if err == nil {
		t.Fatal("Parse() expected error for missing DATABASE section")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("error should wrap ErrConfiguration: %v", err)
	}
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := Parse([]byte("[DATABASE]\ntrusted_connection = yes\n"), "config.ini")
	if err == nil {
		t.Fatal("Parse() expected error for missing server and database")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("error should wrap ErrConfiguration: %v", err)
	}
	if !strings.Contains(err.Error(), "DATABASE.server") {
		t.Errorf("error should mention DATABASE.server: %v", err)
	}
	if !strings.Contains(err.Error(), "DATABASE.database") {
		t.Errorf("error should mention DATABASE.database: %v", err)
	}
}

func TestParse_SQLiteWithoutServer(t *testing.T) {
	cfg, err := Parse([]byte("[DATABASE]\ndatabase = /tmp/dw.db\ndriver = sqlite\n"), "config.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	engine, _ := cfg.Database.Engine()
	if engine != EngineSQLite {
		t.Errorf("Engine() = %q, want %q", engine, EngineSQLite)
	}
}

func TestParse_InvalidValues(t *testing.T) {
	data := "[DATABASE]\nserver = s\ndatabase = d\nconnect_timeout = soon\n[STAGING]\nbatch_size = many\n"
	_, err := Parse([]byte(data), "config.ini")
	if err == nil {
		t.Fatal("Parse() expected error for invalid values")
	}
	if !strings.Contains(err.Error(), "connect_timeout") || !strings.Contains(err.Error(), "batch_size") {
		t.Errorf("error should list every invalid key: %v", err)
	}
}

func TestParse_TimeoutSeconds(t *testing.T) {
	cfg, err := Parse([]byte("[DATABASE]\nserver = s\ndatabase = d\nconnect_timeout = 10\n"), "config.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Database.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.Database.ConnectTimeout)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("DWLOADER_CRON", "0 2 * * *")

	cfg, err := Parse([]byte("[DATABASE]\nserver = s\ndatabase = d\n"), "config.ini")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Events.AMQPURL != "amqp://guest:guest@mq:5672/" {
		t.Errorf("AMQPURL = %q", cfg.Events.AMQPURL)
	}
	if cfg.Metrics.PushgatewayURL != "http://pushgateway:9091" {
		t.Errorf("PushgatewayURL = %q", cfg.Metrics.PushgatewayURL)
	}
	if cfg.Schedule.Cron != "0 2 * * *" {
		t.Errorf("Schedule.Cron = %q", cfg.Schedule.Cron)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Load() error = %v, want ErrConfiguration", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	data := "[DATABASE]\nserver = localhost\ndatabase = DataShop\n\n[STAGING]\nencoding = windows-1252\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Staging.Encoding != "windows-1252" {
		t.Errorf("Encoding = %q", cfg.Staging.Encoding)
	}
}

func TestEngine(t *testing.T) {
	tests := []struct {
		driver string
		want   Engine
	}{
		{"ODBC Driver 17 for SQL Server", EngineSQLServer},
		{"ODBC Driver 18 for SQL Server", EngineSQLServer},
		{"sqlserver", EngineSQLServer},
		{"", EngineSQLServer},
		{"pgx", EnginePostgres},
		{"PostgreSQL", EnginePostgres},
		{"sqlite3", EngineSQLite},
	}

	for _, tt := range tests {
		got, err := DatabaseConfig{Driver: tt.driver}.Engine()
		if err != nil {
			t.Errorf("Engine(%q) error = %v", tt.driver, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Engine(%q) = %q, want %q", tt.driver, got, tt.want)
		}
	}

	if _, err := (DatabaseConfig{Driver: "oracle"}).Engine(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Engine(oracle) error = %v, want ErrConfiguration", err)
	}
}

func TestConfigString_MasksPassword(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Server: "s", User: "etl", Password: "s3cret", DSN: "sqlserver://etl:s3cret@s"}}
	str := cfg.String()
	if strings.Contains(str, "s3cret") {
		t.Error("String() should mask password and DSN")
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}
