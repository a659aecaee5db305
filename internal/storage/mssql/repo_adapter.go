// Adapter registering the "mssql" backend with the storage factory and
// DDL bootstrap registry.
package mssql

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
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mssql", ensureTable)
}

// sqlType maps a canonical field type onto a SQL Server column type.
// Textual key columns stay within index size limits.
func sqlType(t schema.FieldType) string {
	switch t {
	case schema.TypeIdentInt:
		return "BIGINT"
	case schema.TypeInt:
		return "INT"
	case schema.TypeDecimal:
		return "FLOAT"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeIdentText:
		return "NVARCHAR(128)"
	default:
		return "NVARCHAR(512)"
	}
}

func ensureTable(ctx context.Context, repo storage.Repository, ent *schema.Entity, t storage.Table, withKey bool) error {
	if t.Schema != "" {
		ensureSchema := fmt.Sprintf(
			"IF SCHEMA_ID(N'%s') IS NULL EXEC('CREATE SCHEMA %s')",
			t.Schema, msIdent(t.Schema),
		)
		if err := repo.Exec(ctx, ensureSchema); err != nil {
			return fmt.Errorf("mssql: create schema %s: %w", t.Schema, err)
		}
	}

	td := ddl.TableDef{FQN: msFQN(t.Dotted())}
	keys := make(map[string]struct{}, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		keys[k] = struct{}{}
	}
	for _, f := range ent.Fields {
		_, isKey := keys[f.Name]
		td.Columns = append(td.Columns, ddl.ColumnDef{
			Name:       msIdent(f.Name),
			SQLType:    sqlType(f.Type),
			Nullable:   !(withKey && isKey),
			PrimaryKey: withKey && isKey,
		})
	}
	// SQL Server has no CREATE TABLE IF NOT EXISTS; guard on OBJECT_ID.
	stmt, err := ddl.BuildCreateTableSQL(td, false)
	if err != nil {
		return err
	}
	guarded := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND", t.Dotted(), stmt)
	if err := repo.Exec(ctx, guarded); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", t.Dotted(), err)
	}
	return nil
}
