// Package mssql implements a SQL Server repository using the
// go-mssqldb bulk copy API. Upserts bulk-copy the batch into a
// session-scoped #stage table and merge it into the target with a
// delete-then-insert keyed on the natural key, all inside one
// transaction per batch.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"tennisetl/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository validates the DSN, opens the pool, and returns a close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql: ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Append bulk-copies rows directly into the target table inside one
// transaction.
func (r *Repository) Append(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin: %w", err)
	}
	defer tx.Rollback()

	n, err := bulkCopy(ctx, tx, t.Dotted(), t.Columns, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

// Upsert merges rows into the target by t.KeyColumns: bulk copy into
// #stage (no constraints), delete target rows whose key appears in the
// stage, insert the stage. One transaction covers all three steps.
func (r *Repository) Upsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(t.KeyColumns) == 0 {
		return 0, fmt.Errorf("mssql: upsert %s: no key columns configured", t.Dotted())
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin: %w", err)
	}
	defer tx.Rollback()

	stage := "#stage_" + strings.ReplaceAll(t.Dotted(), ".", "_")
	create := fmt.Sprintf(
		"SELECT TOP 0 %s INTO %s FROM %s",
		strings.Join(mapIdent(t.Columns), ","), msIdent(stage), msFQN(t.Dotted()),
	)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("mssql: create stage: %w", err)
	}

	n, err := bulkCopy(ctx, tx, stage, t.Columns, rows)
	if err != nil {
		return 0, err
	}

	conds := make([]string, 0, len(t.KeyColumns))
	for _, k := range t.KeyColumns {
		conds = append(conds, fmt.Sprintf("T.%s = S.%s", msIdent(k), msIdent(k)))
	}
	del := fmt.Sprintf(
		"DELETE T FROM %s AS T INNER JOIN %s AS S ON %s",
		msFQN(t.Dotted()), msIdent(stage), strings.Join(conds, " AND "),
	)
	if _, err := tx.ExecContext(ctx, del); err != nil {
		return 0, fmt.Errorf("mssql: delete matching rows: %w", err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		msFQN(t.Dotted()),
		strings.Join(mapIdent(t.Columns), ","),
		strings.Join(mapIdent(t.Columns), ","),
		msIdent(stage),
	)
	if _, err := tx.ExecContext(ctx, insert); err != nil {
		return 0, fmt.Errorf("mssql: insert phase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

// bulkCopy streams rows into table via the driver's bulk copy
// statement, returning the count the driver reports.
func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare bulk copy: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mssql: rows affected: %w", err)
	}
	return n, nil
}

// Exec runs a statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// msIdent quotes a single identifier segment for SQL Server. Temp
// table names (#...) keep their prefix inside the brackets.
func msIdent(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }

// msFQN quotes a possibly dotted name segment by segment.
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
