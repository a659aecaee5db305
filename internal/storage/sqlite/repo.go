// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql with the modernc driver. SQLite has no COPY-style bulk
// primitive, so both apply paths run a prepared statement per row
// inside a single transaction, which keeps batch atomicity and
// performs well for file-sized batches. SQLite is also the repository
// the test suite runs apply semantics against (in-memory DSNs need no
// server).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tennisetl/internal/storage"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is passed to database/sql, e.g. "file:tennis.db" or
	// "file:mem?mode=memory&cache=shared".
	DSN string
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the SQLite database and returns a Repository
// plus a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Single writer; also keeps in-memory databases on one connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// DB exposes the underlying handle for tests.
func (r *Repository) DB() *sql.DB { return r.db }

// Append bulk-inserts rows inside one transaction.
func (r *Repository) Append(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	return r.apply(ctx, t, rows, false)
}

// Upsert merges rows by t.KeyColumns inside one transaction using
// INSERT ... ON CONFLICT DO UPDATE over the non-key columns.
func (r *Repository) Upsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	if len(t.KeyColumns) == 0 {
		return 0, fmt.Errorf("sqlite: upsert %s: no key columns configured", t.Name)
	}
	return r.apply(ctx, t, rows, true)
}

func (r *Repository) apply(ctx context.Context, t storage.Table, rows [][]any, upsert bool) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(t.Columns) == 0 {
		return 0, fmt.Errorf("sqlite: no columns configured for %s", t.Name)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",")
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name), strings.Join(quoteAll(t.Columns), ", "), placeholders)
	if upsert {
		updates := make([]string, 0, len(t.Columns))
		for _, c := range t.NonKeyColumns() {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c)))
		}
		action := "NOTHING"
		if len(updates) > 0 {
			action = "UPDATE SET " + strings.Join(updates, ", ")
		}
		stmtSQL += fmt.Sprintf(" ON CONFLICT(%s) DO %s",
			strings.Join(quoteAll(t.KeyColumns), ", "), action)
	}

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	var n int64
	args := make([]any, len(t.Columns))
	for i, row := range rows {
		if len(row) != len(t.Columns) {
			return 0, fmt.Errorf("sqlite: row %d has %d values, want %d", i, len(row), len(t.Columns))
		}
		for j, v := range row {
			args[j] = toSQLiteVal(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("sqlite: insert row %d into %s: %w", i, t.Name, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Exec runs a statement against the database.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// toSQLiteVal normalizes values for binding. Dates are stored as ISO
// text so that re-runs compare equal regardless of driver time
// encoding.
func toSQLiteVal(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return v
}

// quoteIdent quotes an identifier for SQLite.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdent(c)
	}
	return out
}
