// Package load writes a canonical sales table into a storage.Repository.
//
// The stored table carries every column of the canonical table under a
// normalized identifier, typed by role (Date as timestamp, Total_Sales,
// Quantity and UnitPrice as float, everything else as text), plus:
//
//	row_hash   sha256 over the source row, unique; the dedupe key
//	load_id    uuid of the run that inserted the row
//	loaded_at  time of that run
//
// Loading the same data twice inserts nothing the second time.
package load

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"salescanon/internal/metrics"
	"salescanon/internal/schema"
	"salescanon/internal/storage"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// Reserved column names added to every stored table.
const (
	ColumnRowHash  = "row_hash"
	ColumnLoadID   = "load_id"
	ColumnLoadedAt = "loaded_at"
)

// DefaultBatchSize is the number of rows handed to InsertRows at once.
const DefaultBatchSize = 1000

// Logger is the minimal logging interface used by Canonical.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures Canonical.
type Options struct {
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int

	// LoadID stamps inserted rows. Empty means a new random UUID.
	LoadID string

	// Now returns the load time. Nil means time.Now.
	Now func() time.Time

	Logger Logger
}

// Result summarizes one load.
type Result struct {
	Table    string
	LoadID   string
	Rows     int
	Inserted int64
	// Skipped counts rows whose row_hash was already stored or repeated in
	// the input.
	Skipped  int64
	Duration time.Duration
}

// Canonical creates the target table if needed and inserts t into it.
func Canonical(ctx context.Context, repo storage.Repository, name string, t *table.Table, opt Options) (res Result, err error) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordStage("store", res.Duration, err)
	}()

	logf := log.New(io.Discard, "", 0).Printf
	if opt.Logger != nil {
		logf = opt.Logger.Printf
	}

	res.Table = TableName(name)
	if res.Table == "" {
		return res, fmt.Errorf("load: table name is empty")
	}
	res.LoadID = opt.LoadID
	if res.LoadID == "" {
		res.LoadID = uuid.NewString()
	}
	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	loadedAt := now().UTC()
	batchSize := opt.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	source := t.Columns()
	spec := Spec(res.Table, source)
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return res, fmt.Errorf("load: %w", err)
	}

	columns := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		columns[i] = c.Name
	}
	convert := converters(source)
	hasher := transformer.Hash{Fields: source, IncludeFieldNames: true, TrimSpace: true}
	dedupe := []string{ColumnRowHash}

	data := t.Rows()
	res.Rows = len(data)
	pending := make([]*transformer.Row, 0, batchSize)
	batch := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			dropAll(pending)
			pending, batch = pending[:0], batch[:0]
			return err
		}
		n, err := repo.InsertRows(ctx, res.Table, columns, batch, dedupe)
		res.Inserted += n
		for _, r := range pending {
			r.Free()
		}
		pending, batch = pending[:0], batch[:0]
		return err
	}

	for i, src := range data {
		r := transformer.GetRow(len(columns))
		r.Line = i + 1
		r.V[0] = hasher.Row(source, src)
		r.V[1] = res.LoadID
		r.V[2] = loadedAt
		for j, v := range src {
			r.V[3+j] = convert[j](v)
		}
		pending = append(pending, r)
		batch = append(batch, r.V)

		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return res, fmt.Errorf("load: rows up to %d: %w", i+1, err)
			}
		}
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("load: final batch: %w", err)
	}

	res.Skipped = int64(res.Rows) - res.Inserted
	metrics.AddRows("inserted", res.Inserted)
	metrics.AddRows("skipped", res.Skipped)
	logf("load: table=%s load_id=%s rows=%d inserted=%d skipped=%d", res.Table, res.LoadID, res.Rows, res.Inserted, res.Skipped)
	return res, nil
}

// Spec returns the storage table for a canonical table with the given source
// columns. Reserved columns come first; a source column that collides with
// one is suffixed ("row_hash_2").
func Spec(name string, source []string) storage.TableSpec {
	names := storage.UniqueIdentifiers(append([]string{ColumnRowHash, ColumnLoadID, ColumnLoadedAt}, source...))

	cols := make([]storage.ColumnSpec, 0, len(names))
	cols = append(cols,
		storage.ColumnSpec{Name: names[0], Type: storage.TypeKey, NotNull: true},
		storage.ColumnSpec{Name: names[1], Type: storage.TypeKey, NotNull: true},
		storage.ColumnSpec{Name: names[2], Type: storage.TypeTimestamp, NotNull: true},
	)
	for i, c := range source {
		cols = append(cols, storage.ColumnSpec{Name: names[3+i], Type: columnType(c)})
	}
	return storage.TableSpec{
		Name:        name,
		Columns:     cols,
		Constraints: []storage.ConstraintSpec{storage.Unique(ColumnRowHash)},
	}
}

// TableName normalizes each part of a possibly schema-qualified name.
func TableName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = storage.NormalizeIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// canonicalRole returns the role whose canonical name is exactly col.
func canonicalRole(col string) (schema.Role, bool) {
	for _, r := range schema.Roles() {
		if string(r) == col {
			return r, true
		}
	}
	return "", false
}

func columnType(col string) storage.ColumnType {
	r, ok := canonicalRole(col)
	if !ok {
		return storage.TypeText
	}
	switch r.Kind() {
	case schema.KindTime:
		return storage.TypeTimestamp
	case schema.KindNumeric:
		return storage.TypeFloat
	default:
		return storage.TypeText
	}
}

func converters(source []string) []func(any) any {
	out := make([]func(any) any, len(source))
	for i, c := range source {
		switch columnType(c) {
		case storage.TypeTimestamp:
			out[i] = timestampValue
		case storage.TypeFloat:
			out[i] = floatValue
		default:
			out[i] = transformer.Identity
		}
	}
	return out
}

func timestampValue(v any) any {
	if t, ok := v.(time.Time); ok && !t.IsZero() {
		return t
	}
	return nil
}

func floatValue(v any) any {
	f, ok := transformer.ParseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func dropAll(rows []*transformer.Row) {
	for _, r := range rows {
		r.Drop()
	}
}
