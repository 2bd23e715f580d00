// Package sqlite implements storage.Repository on SQLite using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"salescanon/internal/storage"
)

// maxParams stays below SQLITE_MAX_VARIABLE_NUMBER on older builds.
const maxParams = 999

func init() {
	storage.Register("sqlite", New)
}

// Repo implements storage.Repository for SQLite.
//
// SQLite has no timestamp type; timestamps are stored as RFC3339Nano text in
// UTC, which sorts and round-trips reliably.
type Repo struct {
	db *sql.DB
}

// New opens cfg.DSN (a file path or ":memory:") and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close closes the database handle.
func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable runs CREATE TABLE IF NOT EXISTS for spec.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows performs multi-row inserts inside one transaction. With
// dedupeColumns it uses INSERT OR IGNORE, which needs a UNIQUE constraint
// matching those columns.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := storage.IndicesFor(dedupeColumns, columns); err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, part := range storage.Chunk(rows, len(columns), maxParams) {
		q, args := buildInsertSQL(table, columns, part, len(dedupeColumns) > 0)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return total, nil
}

func buildInsertSQL(table string, columns []string, rows [][]any, orIgnore bool) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	if orIgnore {
		b.WriteString("INSERT OR IGNORE INTO ")
	} else {
		b.WriteString("INSERT INTO ")
	}
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for j := range columns {
			args = append(args, bindValue(row[j]))
		}
	}
	return b.String(), args
}

// bindValue stores times as text; everything else passes through.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatSQLiteTime(t)
	}
	return v
}

func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(spec.Columns)+len(spec.Constraints))
	for _, c := range spec.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), sqlType(c.Type))
		if c.NotNull {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	for _, con := range spec.Constraints {
		cols := make([]string, len(con.Columns))
		for i, c := range con.Columns {
			cols[i] = sqlIdent(c)
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", sqlIdent(spec.Name), strings.Join(parts, ",\n  ")), nil
}

// sqlType maps logical types to SQLite affinities. Validate has already
// rejected unknown types.
func sqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// formatSQLiteTime formats a time as RFC3339Nano in UTC.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
