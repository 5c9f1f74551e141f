// Package catalog описывает таблицы и процедуры хранилища,
// с которыми работает загрузчик.
//
// Встроенный каталог (default.yaml) соответствует схеме DataShop.
// Пользовательский YAML накладывается поверх встроенного: указанные
// поля заменяются, отсутствующие остаются по умолчанию.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidCatalog — каталог не прошёл валидацию.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog — имена объектов хранилища.
type Catalog struct {
	// ProcessName — имя процесса в журнале ETL_Control_Procesos,
	// по которому строится итоговая сводка.
	ProcessName string `yaml:"process_name"`

	TimeDimension     TimeDimension `yaml:"time_dimension"`
	IntegrationTables []string      `yaml:"integration_tables"`

	// Facts, Logs, Dimensions — таблицы, очищаемые при сбросе, в этом порядке.
	Facts      []Table `yaml:"facts"`
	Logs       []Table `yaml:"logs"`
	Dimensions []Table `yaml:"dimensions"`

	ControlLog ControlLog `yaml:"control_log"`
	Rejections Rejections `yaml:"rejections"`
	Routines   Routines   `yaml:"routines"`
	Staging    Staging    `yaml:"staging"`
}

// TimeDimension — измерение времени.
type TimeDimension struct {
	Table      string `yaml:"table"`
	DateColumn string `yaml:"date_column"`
}

// Table — таблица, участвующая в сбросе.
type Table struct {
	Name string `yaml:"table"`

	// Reseed — у таблицы есть автоинкрементный ключ, счётчик которого
	// сбрасывается после очистки.
	Reseed bool `yaml:"reseed"`
}

// ControlLog — журнал запусков (одна строка на запуск процедуры).
type ControlLog struct {
	Table      string `yaml:"table"`
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Status     string `yaml:"status"`
	Processed  string `yaml:"processed"`
	Rejected   string `yaml:"rejected"`
	StartedAt  string `yaml:"started_at"`
	FinishedAt string `yaml:"finished_at"`
}

// Rejections — журнал отклонённых записей.
type Rejections struct {
	Table       string `yaml:"table"`
	ProcessID   string `yaml:"process_id"`
	SourceTable string `yaml:"source_table"`
	Reason      string `yaml:"reason"`
}

// Routine — хранимая процедура преобразования.
type Routine struct {
	Name string `yaml:"name"`

	// Param — имя единственного параметра (флаг переобработки).
	// Пусто — процедура вызывается без параметров.
	Param string `yaml:"param"`
}

// HasParam возвращает true, если процедура принимает флаг переобработки.
func (r Routine) HasParam() bool {
	return r.Param != ""
}

// Routines — процедуры этапов конвейера.
type Routines struct {
	// Load — INT → DW.
	Load Routine `yaml:"load"`

	// Integrate — STG → INT.
	Integrate Routine `yaml:"integrate"`
}

// Staging — наборы данных для загрузки файлов в STG.
type Staging struct {
	// LoadStampColumn — колонка с меткой времени загрузки.
	LoadStampColumn string    `yaml:"load_stamp_column"`
	Datasets        []Dataset `yaml:"datasets"`
}

// Dataset — один исходный CSV и его staging-таблица.
type Dataset struct {
	File        string   `yaml:"file"`
	Table       string   `yaml:"table"`
	Columns     []string `yaml:"columns"`
	DateColumns []string `yaml:"date_columns"`
}

// IsDateColumn возвращает true, если колонка содержит дату.
func (d Dataset) IsDateColumn(name string) bool {
	for _, c := range d.DateColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Default возвращает встроенный каталог.
func Default() *Catalog {
	var c Catalog
	if err := yaml.Unmarshal(defaultYAML, &c); err != nil {
		panic(fmt.Sprintf("embedded catalog is broken: %v", err))
	}
	return &c
}

// Load читает каталог из файла. Пустой путь — встроенный каталог.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse накладывает YAML на встроенный каталог и валидирует результат.
func Parse(data []byte) (*Catalog, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ResetOrder возвращает таблицы в порядке очистки: факты, журналы, измерения.
func (c *Catalog) ResetOrder() []Table {
	tables := make([]Table, 0, len(c.Facts)+len(c.Logs)+len(c.Dimensions))
	tables = append(tables, c.Facts...)
	tables = append(tables, c.Logs...)
	tables = append(tables, c.Dimensions...)
	return tables
}

// FactTables возвращает имена таблиц фактов.
func (c *Catalog) FactTables() []string {
	names := make([]string, len(c.Facts))
	for i, t := range c.Facts {
		names[i] = t.Name
	}
	return names
}

// Validate проверяет, что все имена заданы и таблицы сброса не повторяются.
func (c *Catalog) Validate() error {
	var errs []string

	required := map[string]string{
		"process_name":               c.ProcessName,
		"time_dimension.table":       c.TimeDimension.Table,
		"time_dimension.date_column": c.TimeDimension.DateColumn,
		"control_log.table":          c.ControlLog.Table,
		"control_log.id":             c.ControlLog.ID,
		"control_log.name":           c.ControlLog.Name,
		"control_log.status":         c.ControlLog.Status,
		"control_log.processed":      c.ControlLog.Processed,
		"control_log.rejected":       c.ControlLog.Rejected,
		"control_log.started_at":     c.ControlLog.StartedAt,
		"control_log.finished_at":    c.ControlLog.FinishedAt,
		"rejections.table":           c.Rejections.Table,
		"rejections.process_id":      c.Rejections.ProcessID,
		"rejections.source_table":    c.Rejections.SourceTable,
		"rejections.reason":          c.Rejections.Reason,
		"routines.load.name":         c.Routines.Load.Name,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, key+" is required")
		}
	}

	if len(c.IntegrationTables) == 0 {
		errs = append(errs, "integration_tables must not be empty")
	}
	for i, name := range c.IntegrationTables {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("integration_tables[%d] is empty", i))
		}
	}

	seen := make(map[string]bool)
	for _, t := range c.ResetOrder() {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, "reset table name is empty")
			continue
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("table %s is listed twice for reset", t.Name))
		}
		seen[key] = true
	}

	for i, ds := range c.Staging.Datasets {
		if ds.File == "" || ds.Table == "" {
			errs = append(errs, fmt.Sprintf("staging.datasets[%d] needs file and table", i))
		}
		if len(ds.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("staging.datasets[%d] (%s) has no columns", i, ds.File))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidCatalog, strings.Join(errs, "\n  - "))
	}
	return nil
}
