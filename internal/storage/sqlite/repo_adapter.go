// Adapter registering the "sqlite" backend with the storage factory
// and DDL bootstrap registry. SQLite has no schemas; the namespace in
// storage.Config is ignored and tables are created bare.
package sqlite

import (
	"context"
	"fmt"

	"tennisetl/internal/ddl"
	"tennisetl/internal/schema"
	"tennisetl/internal/storage"
)

var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", ensureTable)
}

// sqlType maps a canonical field type onto a SQLite column type.
// Dates are stored as ISO text.
func sqlType(t schema.FieldType) string {
	switch t {
	case schema.TypeIdentInt, schema.TypeInt:
		return "INTEGER"
	case schema.TypeDecimal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func ensureTable(ctx context.Context, repo storage.Repository, ent *schema.Entity, t storage.Table, withKey bool) error {
	td := ddl.TableDef{FQN: quoteIdent(t.Name)}
	keys := make(map[string]struct{}, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		keys[k] = struct{}{}
	}
	for _, f := range ent.Fields {
		_, isKey := keys[f.Name]
		td.Columns = append(td.Columns, ddl.ColumnDef{
			Name:       quoteIdent(f.Name),
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
		return fmt.Errorf("sqlite: create table %s: %w", t.Name, err)
	}
	return nil
}
