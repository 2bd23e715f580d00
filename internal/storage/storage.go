// Package storage persists canonical tables into a relational database.
//
// Backends register themselves by kind from an init function (see
// storage/all); callers pick one at runtime with New.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Repository.
//
// Kind must match a registered backend ("postgres", "mssql", "sqlite"). DSN is
// passed through to the backend; validation is backend-specific.
type Config struct {
	Kind string `yaml:"kind" json:"kind"`
	DSN  string `yaml:"dsn" json:"dsn"`
}

// Repository is the backend-agnostic interface used to load canonical tables.
//
// Each backend implements idempotent inserts in its own way: Postgres uses
// ON CONFLICT DO NOTHING, SQLite INSERT OR IGNORE, SQL Server
// INSERT ... WHERE NOT EXISTS.
type Repository interface {
	// Close releases backend resources. Call it once.
	Close()

	// EnsureTable creates the table (and its schema, where the backend has
	// schemas) if it does not exist. Existing tables are left untouched.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows aligned with columns and returns the number of
	// rows actually written. When dedupeColumns is non-empty, rows whose
	// dedupe key already exists (in the table or earlier in the same call)
	// are skipped.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error)
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// Register panics if kind is empty, f is nil, or kind is already registered.
// Registering twice is a wiring bug and fails fast at init time.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
