// Package mssql implements storage.Repository on Microsoft SQL Server using
// database/sql and the go-mssqldb "sqlserver" driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"salescanon/internal/storage"
)

// maxParams stays below SQL Server's limit of 2100 parameters per request.
const maxParams = 2000

func init() {
	storage.Register("mssql", New)
}

// Repo implements storage.Repository for SQL Server.
//
// Idempotent inserts use INSERT ... SELECT ... WHERE NOT EXISTS. Unlike
// Postgres ON CONFLICT DO NOTHING, SQL Server does not collapse duplicates
// inside the VALUES source, so each batch is deduplicated first.
type Repo struct {
	db dbConn
}

// New opens cfg.DSN with the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	raw.SetMaxOpenConns(64)
	raw.SetMaxIdleConns(64)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repo{db: raw}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the table behind an OBJECT_ID guard.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows in parameter-bounded chunks.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if len(dedupeColumns) > 0 {
		var err error
		rows, err = dedupeRowsByColumns(rows, columns, dedupeColumns)
		if err != nil {
			return 0, err
		}
	}

	var total int64
	for _, part := range storage.Chunk(rows, len(columns), maxParams) {
		var q string
		var args []any
		if len(dedupeColumns) == 0 {
			q, args = buildBulkInsertSQL(table, columns, part)
		} else {
			q, args = buildInsertNotExistsSQL(table, columns, part, dedupeColumns)
		}
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// dedupeRowsByColumns keeps the first row per dedupe key, preserving order.
// A dedupe column missing from columns is an error.
func dedupeRowsByColumns(rows [][]any, columns, dedupeColumns []string) ([][]any, error) {
	idx, err := storage.IndicesFor(dedupeColumns, columns)
	if err != nil {
		return nil, fmt.Errorf("mssql: %w", err)
	}
	return storage.DedupeRows(rows, idx), nil
}

// buildCreateSQL wraps CREATE TABLE in an OBJECT_ID guard, since SQL Server
// has no CREATE TABLE IF NOT EXISTS.
func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(spec.Columns)+len(spec.Constraints))
	for _, c := range spec.Columns {
		typ, err := sqlType(c.Type)
		if err != nil {
			return "", fmt.Errorf("mssql: table %s: %w", spec.Name, err)
		}
		def := mssqlIdent(c.Name) + " " + typ
		if c.NotNull {
			def += " NOT NULL"
		} else {
			def += " NULL"
		}
		parts = append(parts, def)
	}
	for _, con := range spec.Constraints {
		cols := make([]string, len(con.Columns))
		for i, c := range con.Columns {
			cols[i] = mssqlIdent(c)
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(spec.Name, "'", "''"),
		mssqlTableIdent(spec.Name),
		strings.Join(parts, ", "),
	), nil
}

// sqlType maps logical types. Unique columns cannot be NVARCHAR(MAX), so
// keys get a bounded length.
func sqlType(t storage.ColumnType) (string, error) {
	switch t {
	case storage.TypeText:
		return "NVARCHAR(MAX)", nil
	case storage.TypeKey:
		return fmt.Sprintf("NVARCHAR(%d)", storage.KeyLength), nil
	case storage.TypeFloat:
		return "FLOAT", nil
	case storage.TypeTimestamp:
		return "DATETIMEOFFSET", nil
	default:
		return "", fmt.Errorf("unsupported column type %q", t)
	}
}

// buildBulkInsertSQL builds a plain multi-row INSERT ... VALUES.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeIdentList(&b, "", columns)
	b.WriteString(") VALUES ")
	args := writeValues(&b, columns, rows)
	return b.String(), args
}

// buildInsertNotExistsSQL materializes rows as a derived table v and inserts
// only those whose dedupe key is not already in the target.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeIdentList(&b, "", columns)
	b.WriteString(") SELECT ")
	writeIdentList(&b, "v.", columns)
	b.WriteString(" FROM (VALUES ")
	args := writeValues(&b, columns, rows)
	b.WriteString(") AS v(")
	writeIdentList(&b, "", columns)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE ")
	for i, dc := range dedupeColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(dc))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(dc))
	}
	b.WriteString(")")
	return b.String(), args
}

func writeIdentList(b *strings.Builder, prefix string, columns []string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(mssqlIdent(c))
	}
}

// writeValues writes "(@p1, @p2), (...)" and returns the bound args.
func writeValues(b *strings.Builder, columns []string, rows [][]any) []any {
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(strings.TrimSpace(name), "]", "]]") + "]"
}

// mssqlTableIdent quotes a schema-qualified name: "dbo.sales" -> [dbo].[sales].
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(parts[i])
	}
	return strings.Join(parts, ".")
}

// dbConn is the subset of *sql.DB this package uses; tests substitute a fake.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

var _ dbConn = (*sql.DB)(nil)
