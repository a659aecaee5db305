// Package postgres implements the Postgres repository using pgx v5.
// Upserts COPY the batch into a constraint-free temporary table and
// merge it into the target with INSERT ... ON CONFLICT DO UPDATE,
// all inside a single transaction per batch.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tennisetl/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// Append bulk-inserts rows into the target table inside one
// transaction.
func (r *Repository) Append(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, identFor(t), t.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, copyErr(t, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Upsert merges rows into the target table by t.KeyColumns. The batch
// is first COPYed into a temp table created without any constraints,
// so a conflicting row cannot abort the bulk transfer; the merge then
// resolves conflicts with DO UPDATE over all non-key columns. Both
// steps share one transaction, and the temp table is dropped at
// commit.
func (r *Repository) Upsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(t.KeyColumns) == 0 {
		return 0, fmt.Errorf("upsert %s: no key columns configured", t.Dotted())
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	stage := "stage_" + strings.ReplaceAll(t.Dotted(), ".", "_")
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WHERE false",
		pgIdent(stage), strings.Join(mapIdent(t.Columns), ","), pgFQN(t.Dotted()),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create stage: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, t.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, copyErr(t, err)
	}

	updates := make([]string, 0, len(t.Columns))
	for _, c := range t.NonKeyColumns() {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c)))
	}
	merge := fmt.Sprintf(
		"INSERT INTO %s (%s)\nSELECT %s FROM %s\nON CONFLICT (%s) DO UPDATE SET %s",
		pgFQN(t.Dotted()),
		strings.Join(mapIdent(t.Columns), ","),
		strings.Join(mapIdent(t.Columns), ","),
		pgIdent(stage),
		strings.Join(mapIdent(t.KeyColumns), ","),
		strings.Join(updates, ", "),
	)
	if len(updates) == 0 {
		merge = fmt.Sprintf(
			"INSERT INTO %s (%s)\nSELECT %s FROM %s\nON CONFLICT (%s) DO NOTHING",
			pgFQN(t.Dotted()),
			strings.Join(mapIdent(t.Columns), ","),
			strings.Join(mapIdent(t.Columns), ","),
			pgIdent(stage),
			strings.Join(mapIdent(t.KeyColumns), ","),
		)
	}
	if _, err := tx.Exec(ctx, merge); err != nil {
		return 0, fmt.Errorf("merge into %s: %w", t.Dotted(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Exec runs a statement against the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// copyErr surfaces the Postgres error detail (row/column context) when
// present; pgx buries it in the wrapped pgconn error.
func copyErr(t storage.Table, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("copy into %s: %s (%s)", t.Dotted(), pgErr.Detail, pgErr.SQLState())
	}
	return fmt.Errorf("copy into %s: %w", t.Dotted(), err)
}

// identFor converts a Table into a pgx.Identifier.
func identFor(t storage.Table) pgx.Identifier {
	if t.Schema != "" {
		return pgx.Identifier{t.Schema, t.Name}
	}
	return pgx.Identifier{t.Name}
}

// pgIdent safely quotes a single identifier segment.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly dotted name like "atp.matches" segment by
// segment.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
