// Adapter registering the "mysql" backend with the storage factory and
// DDL bootstrap registry.
package mysql

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
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mysql", ensureTable)
}

// sqlType maps a canonical field type onto a MySQL column type.
func sqlType(t schema.FieldType) string {
	switch t {
	case schema.TypeIdentInt:
		return "BIGINT"
	case schema.TypeInt:
		return "INT"
	case schema.TypeDecimal:
		return "DOUBLE"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeIdentText:
		return "VARCHAR(128)"
	default:
		return "VARCHAR(512)"
	}
}

func ensureTable(ctx context.Context, repo storage.Repository, ent *schema.Entity, t storage.Table, withKey bool) error {
	td := ddl.TableDef{FQN: myFQN(t.Dotted())}
	keys := make(map[string]struct{}, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		keys[k] = struct{}{}
	}
	for _, f := range ent.Fields {
		_, isKey := keys[f.Name]
		td.Columns = append(td.Columns, ddl.ColumnDef{
			Name:       myIdent(f.Name),
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
		return fmt.Errorf("mysql: create table %s: %w", t.Dotted(), err)
	}
	return nil
}
