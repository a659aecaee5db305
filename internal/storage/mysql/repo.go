// Package mysql implements a MySQL-backed storage.Repository using
// database/sql. MySQL has no COPY equivalent, so batches are applied
// with chunked multi-row INSERT statements inside one transaction;
// upserts add ON DUPLICATE KEY UPDATE over the non-key columns, with
// the natural key enforced as the table's primary key.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"tennisetl/internal/storage"
)

// insertChunk caps rows per multi-row INSERT to stay well under
// MySQL's placeholder and packet limits for wide tables.
const insertChunk = 500

// Config holds MySQL repository configuration.
type Config struct {
	DSN string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the pool and returns a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Append bulk-inserts rows inside one transaction.
func (r *Repository) Append(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	return r.apply(ctx, t, rows, false)
}

// Upsert merges rows by the table's primary key (the natural key)
// inside one transaction.
func (r *Repository) Upsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	if len(t.KeyColumns) == 0 {
		return 0, fmt.Errorf("mysql: upsert %s: no key columns configured", t.Dotted())
	}
	return r.apply(ctx, t, rows, true)
}

func (r *Repository) apply(ctx context.Context, t storage.Table, rows [][]any, upsert bool) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin: %w", err)
	}
	defer tx.Rollback()

	suffix := ""
	if upsert {
		updates := make([]string, 0, len(t.Columns))
		for _, c := range t.NonKeyColumns() {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", myIdent(c), myIdent(c)))
		}
		if len(updates) == 0 {
			// Key-only table: keep the existing row.
			for _, k := range t.KeyColumns {
				updates = append(updates, fmt.Sprintf("%s = %s", myIdent(k), myIdent(k)))
			}
		}
		suffix = " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	}

	rowPH := "(" + strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",") + ")"
	var n int64
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(t.Columns))
		for i, row := range chunk {
			if len(row) != len(t.Columns) {
				return 0, fmt.Errorf("mysql: row %d has %d values, want %d", start+i, len(row), len(t.Columns))
			}
			args = append(args, row...)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s%s",
			myFQN(t.Dotted()),
			strings.Join(mapIdent(t.Columns), ", "),
			strings.TrimSuffix(strings.Repeat(rowPH+",", len(chunk)), ","),
			suffix,
		)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("mysql: insert into %s: %w", t.Dotted(), err)
		}
		n += int64(len(chunk))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return n, nil
}

// Exec runs a statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// myIdent quotes a single identifier segment for MySQL.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly dotted name segment by segment.
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
