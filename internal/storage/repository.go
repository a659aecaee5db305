// Package storage contains the storage-agnostic contracts of the
// ingestion pipeline: the Repository interface every backend
// implements, the Table shape passed to its bulk operations, and a
// factory registry so callers select a backend by name without
// importing driver packages.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Table describes the target relation for one apply call.
type Table struct {
	// Schema is the optional namespace (e.g. "atp"); backends without
	// schema support ignore it.
	Schema string

	// Name is the bare table name.
	Name string

	// Columns is the ordered column list used for bulk transfer.
	Columns []string

	// KeyColumns is the natural key used by Upsert as the merge target.
	KeyColumns []string
}

// Dotted returns the dotted, unquoted name ("atp.players" or
// "players"); backends quote it per dialect.
func (t Table) Dotted() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// NonKeyColumns returns Columns minus KeyColumns, in column order.
func (t Table) NonKeyColumns() []string {
	keys := make(map[string]struct{}, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		keys[k] = struct{}{}
	}
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if _, isKey := keys[c]; !isKey {
			out = append(out, c)
		}
	}
	return out
}

// Repository is the minimal storage capability the pipeline needs.
//
// Both Append and Upsert are transactional per call: a batch either
// fully applies or leaves the table untouched. Upsert merges by
// Table.KeyColumns (insert if absent, overwrite all non-key fields if
// present), so applying the same batch twice converges to the state of
// applying it once. Callers must not run two applies against the same
// table concurrently.
type Repository interface {
	// Append bulk-inserts rows (aligned to t.Columns order).
	Append(ctx context.Context, t Table, rows [][]any) (int64, error)

	// Upsert stages rows and merges them into t by natural key.
	Upsert(ctx context.Context, t Table, rows [][]any) (int64, error)

	// Exec runs an arbitrary statement (DDL bootstrap, post-load
	// recompute hooks).
	Exec(ctx context.Context, sql string) error

	// Close releases the underlying pool or connection.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind   string // "postgres", "mssql", "sqlite", "mysql"
	DSN    string
	Schema string // optional namespace for target tables
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factMu    sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. It
// is called from backend packages' init functions.
func Register(kind string, fn Factory) {
	factMu.Lock()
	defer factMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind. Backends must have been linked
// in (usually via a blank import of storage/all).
func New(ctx context.Context, cfg Config) (Repository, error) {
	factMu.RLock()
	fn, ok := factories[cfg.Kind]
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	factMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind=%q (registered: %s)",
			cfg.Kind, strings.Join(kinds, ", "))
	}
	return fn(ctx, cfg)
}
