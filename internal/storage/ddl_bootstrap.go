package storage

import (
	"context"
	"fmt"
	"sync"

	"tennisetl/internal/schema"
)

// DDLBootstrapper creates the target table (and namespace) for one
// entity if it does not exist, using the backend's dialect. withKey
// asks for a primary key over t.KeyColumns, which upsert-mode tables
// need as their merge target; append-mode tables are created without
// any key constraint.
type DDLBootstrapper func(ctx context.Context, repo Repository, ent *schema.Entity, t Table, withKey bool) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL installs (or replaces) the DDL bootstrapper for a
// backend kind. Called from backend packages' init functions.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable invokes the bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, ent *schema.Entity, t Table, withKey bool) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage kind=%q", kind)
	}
	return fn(ctx, repo, ent, t, withKey)
}
