package staging

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/telemetry"
)

// Ошибки загрузки.
var (
	// ErrMissingColumn — в заголовке CSV нет ожидаемой колонки.
	ErrMissingColumn = errors.New("missing column")

	// ErrLoad — загрузка не выполнена, транзакция откачена.
	ErrLoad = errors.New("staging load failed")
)

const (
	defaultBatchSize = 500

	// maxParams — предел параметров в одной команде (SQL Server допускает 2100).
	maxParams = 2000
)

// Config — конфигурация Loader.
type Config struct {
	Catalog *catalog.Catalog
	Source  Source

	// Encoding — кодировка файлов (default: utf-8).
	Encoding string

	// BatchSize — строк в одной команде INSERT (default: 500).
	BatchSize int

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Now — метка времени загрузки (default: time.Now).
	Now func() time.Time
}

// Loader загружает наборы данных каталога в staging-таблицы.
type Loader struct {
	catalog   *catalog.Catalog
	source    Source
	decode    func(io.Reader) io.Reader
	batchSize int
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт Loader.
func New(cfg Config) (*Loader, error) {
	decode, err := Decoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Loader{
		catalog:   cat,
		source:    cfg.Source,
		decode:    decode,
		batchSize: batchSize,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       now,
	}, nil
}

// DatasetResult — итог по одному набору данных.
type DatasetResult struct {
	File    string `json:"file"`
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Result — итог загрузки.
type Result struct {
	Datasets []DatasetResult `json:"datasets"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Rows возвращает общее число загруженных строк.
func (r *Result) Rows() int {
	n := 0
	for _, d := range r.Datasets {
		n += d.Rows
	}
	return n
}

// Load загружает все наборы данных одной транзакцией.
// Отсутствующий файл пропускается с предупреждением.
func (l *Loader) Load(ctx context.Context, s *repo.Session) (*Result, error) {
	if err := l.source.Check(ctx); err != nil {
		return nil, err
	}
	l.logger.Info("loading staging tables", "source", l.source.String(), "datasets", len(l.catalog.Staging.Datasets))

	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	stamp := l.now().Format(StampLayout)
	res := &Result{}

	for _, ds := range l.catalog.Staging.Datasets {
		dr, err := l.loadDataset(ctx, s.Dialect(), tx, ds, stamp)
		if errors.Is(err, fs.ErrNotExist) {
			msg := fmt.Sprintf("%s not found in %s", ds.File, l.source)
			l.logger.Warn("dataset skipped", "file", ds.File, "source", l.source.String())
			res.Warnings = append(res.Warnings, msg)
			res.Datasets = append(res.Datasets, DatasetResult{File: ds.File, Table: ds.Table, Skipped: true})
			continue
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.logger.Error("staging rollback failed", "error", rbErr)
			}
			l.logger.Error("staging load failed, transaction rolled back", "file", ds.File, "error", err)
			return res, fmt.Errorf("%w: %s: %w", ErrLoad, ds.File, err)
		}

		res.Datasets = append(res.Datasets, dr)
		l.logger.Info("dataset loaded", "file", ds.File, "table", ds.Table, "rows", humanize.Comma(int64(dr.Rows)))
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	for _, d := range res.Datasets {
		l.metrics.AddStagedRows(d.Table, d.Rows)
	}
	l.logger.Info("staging load committed", "rows", humanize.Comma(int64(res.Rows())))
	return res, nil
}

func (l *Loader) loadDataset(ctx context.Context, d repo.Dialect, q repo.Querier, ds catalog.Dataset, stamp string) (DatasetResult, error) {
	rc, err := l.source.Open(ctx, ds.File)
	if err != nil {
		return DatasetResult{}, err
	}
	defer rc.Close()

	rows, err := l.readDataset(rc, ds, stamp)
	if err != nil {
		return DatasetResult{}, err
	}

	if err := d.TruncateTable(ds.Table).Exec(ctx, q); err != nil {
		return DatasetResult{}, fmt.Errorf("truncate %s: %w", ds.Table, err)
	}

	columns := append(append([]string{}, ds.Columns...), l.catalog.Staging.LoadStampColumn)
	if err := l.insert(ctx, d, q, ds.Table, columns, rows); err != nil {
		return DatasetResult{}, err
	}

	return DatasetResult{File: ds.File, Table: ds.Table, Rows: len(rows)}, nil
}

// readDataset читает CSV и оставляет только ожидаемые колонки в порядке каталога.
// Колонки дат приводятся к StampLayout, последним значением идёт метка загрузки.
func (l *Loader) readDataset(r io.Reader, ds catalog.Dataset, stamp string) ([][]any, error) {
	cr := csv.NewReader(l.decode(r))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", ds.File)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", ds.File, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	positions := make([]int, len(ds.Columns))
	for i, c := range ds.Columns {
		pos, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrMissingColumn, ds.File, c)
		}
		positions[i] = pos
	}

	var rows [][]any
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ds.File, err)
		}

		row := make([]any, 0, len(positions)+1)
		for i, pos := range positions {
			v := record[pos]
			if ds.IsDateColumn(ds.Columns[i]) {
				v = NormalizeDate(v)
			}
			row = append(row, v)
		}
		row = append(row, stamp)
		rows = append(rows, row)
	}
	return rows, nil
}

// insert пишет строки пачками многострочных INSERT.
func (l *Loader) insert(ctx context.Context, d repo.Dialect, q repo.Querier, table string, columns []string, rows [][]any) error {
	perStmt := min(l.batchSize, maxParams/len(columns))

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	prefix := "INSERT INTO " + d.Quote(table) + " (" + strings.Join(quoted, ", ") + ") VALUES "

	for start := 0; start < len(rows); start += perStmt {
		batch := rows[start:min(start+perStmt, len(rows))]

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, len(batch)*len(columns))
		for i, row := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('(')
			for j, v := range row {
				if j > 0 {
					b.WriteString(", ")
				}
				args = append(args, v)
				b.WriteString(d.Placeholder(len(args)))
			}
			b.WriteByte(')')
		}

		if _, err := q.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("insert into %s (rows %d-%d): %w", table, start+1, start+len(batch), err)
		}
	}
	return nil
}
