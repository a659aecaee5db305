// This adapter wires the Postgres backend into the storage-agnostic
// factory and registers its DDL bootstrapper, so callers obtain a
// Repository via storage.New without importing this package directly.
package postgres

import (
	"context"
	"fmt"

	"tennisetl/internal/ddl"
	"tennisetl/internal/schema"
	"tennisetl/internal/storage"
)

// newRepository is a test hook pointing at NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository and carries the
// close function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", ensureTable)
}

// sqlType maps a canonical field type onto its Postgres column type.
func sqlType(t schema.FieldType) string {
	switch t {
	case schema.TypeIdentInt:
		return "BIGINT"
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeDecimal:
		return "DOUBLE PRECISION"
	case schema.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// ensureTable creates the schema (when configured) and the entity's
// target table if they do not exist.
func ensureTable(ctx context.Context, repo storage.Repository, ent *schema.Entity, t storage.Table, withKey bool) error {
	if t.Schema != "" {
		if err := repo.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(t.Schema)); err != nil {
			return fmt.Errorf("create schema %s: %w", t.Schema, err)
		}
	}

	td := ddl.TableDef{FQN: pgFQN(t.Dotted())}
	keys := make(map[string]struct{}, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		keys[k] = struct{}{}
	}
	for _, f := range ent.Fields {
		_, isKey := keys[f.Name]
		td.Columns = append(td.Columns, ddl.ColumnDef{
			Name:       pgIdent(f.Name),
			SQLType:    sqlType(f.Type),
			Nullable:   !(withKey && isKey),
			PrimaryKey: withKey && isKey,
		})
	}
	stmt, err := ddl.BuildCreateTableSQL(td, true)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", t.Dotted(), err)
	}
	return nil
}
