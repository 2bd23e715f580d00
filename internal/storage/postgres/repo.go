// Package postgres implements storage.Repository on PostgreSQL via pgxpool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"salescanon/internal/storage"
)

// maxParams stays below the protocol limit of 65535 bind parameters.
const maxParams = 65000

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a connection pool for cfg.DSN and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (for qualified names) and the table.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("postgres: create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows in chunks. With dedupeColumns the insert becomes
//
//	ON CONFLICT (<dedupeColumns...>) DO NOTHING
//
// which needs a matching unique constraint on the table.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	keyIdx, err := storage.IndicesFor(dedupeColumns, columns)
	if err != nil {
		return 0, fmt.Errorf("postgres: %w", err)
	}
	rows = storage.DedupeRows(rows, keyIdx)

	var total int64
	for _, part := range storage.Chunk(rows, len(columns), maxParams) {
		sql, args := buildInsertSQL(table, columns, part, dedupeColumns)
		cmd, err := r.pool.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
// rows must have len(columns) values each.
func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

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
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(dedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range dedupeColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}

	b.WriteString(";")
	return b.String(), args
}

// buildCreateSQL returns the optional CREATE SCHEMA and the CREATE TABLE
// statements for spec.
func buildCreateSQL(spec storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := spec.Validate(); err != nil {
		return "", "", err
	}
	if schema, _ := splitQualifiedName(spec.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	defs := make([]string, 0, len(spec.Columns)+len(spec.Constraints))
	for _, c := range spec.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", "", fmt.Errorf("postgres: table %s: %w", spec.Name, err)
		}
		defs = append(defs, def)
	}
	for _, con := range spec.Constraints {
		cols := make([]string, len(con.Columns))
		for i, c := range con.Columns {
			cols[i] = pgIdent(strings.TrimSpace(c))
		}
		defs = append(defs, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}

	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, pgTableIdent(spec.Name), strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}

// buildColumnDef renders a single column definition.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	typ, err := sqlType(c.Type)
	if err != nil {
		return "", err
	}
	def := pgIdent(strings.TrimSpace(c.Name)) + " " + typ
	if c.NotNull {
		def += " NOT NULL"
	}
	return def, nil
}

func sqlType(t storage.ColumnType) (string, error) {
	switch t {
	case storage.TypeText, storage.TypeKey:
		return "TEXT", nil
	case storage.TypeFloat:
		return "DOUBLE PRECISION", nil
	case storage.TypeTimestamp:
		return "TIMESTAMPTZ", nil
	default:
		return "", fmt.Errorf("unsupported column type %q", t)
	}
}

// splitQualifiedName splits "schema.table" into its parts. Anything but a
// single dot is treated as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// pgIdent double-quotes an identifier, escaping embedded quotes.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgTableIdent quotes a possibly schema-qualified table name.
func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}
