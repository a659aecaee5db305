// Package ingest executes a load plan end to end.
//
// For every entity in the plan it expands the configured sources, parses
// each extract, conforms and coerces the rows into the canonical schema,
// merges the extracts into one batch, windows and deduplicates it, and
// applies the survivors to the storage backend in the entity's apply mode.
// Extract-level failures (unreadable file, unresolvable header) are
// recorded and skipped; storage failures are fatal for the run.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"tennisetl/internal/config"
	"tennisetl/internal/datasource"
	"tennisetl/internal/datasource/file"
	"tennisetl/internal/datasource/httpds"
	"tennisetl/internal/metrics"
	"tennisetl/internal/parser"
	csvparser "tennisetl/internal/parser/csv"
	"tennisetl/internal/records"
	"tennisetl/internal/schema"
	"tennisetl/internal/storage"
	"tennisetl/internal/transformer"
	"tennisetl/internal/transformer/builtin"
)

// maxConcurrentLoads bounds how many entity loads run at once. Loads for
// the same entity never run concurrently; the plan lists each entity once.
const maxConcurrentLoads = 4

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = storage.New
	ensureTableFn   = storage.EnsureTable
)

// EntityResult reports what happened to one entity load.
type EntityResult struct {
	Entity string
	Table  string
	Mode   schema.ApplyMode

	Extracts int // extracts successfully parsed

	RowsIn            int64 // records parsed across all extracts
	ParseSkipped      int64 // malformed lines skipped by the parser
	DateFiltered      int64 // rows dropped by the min_date window
	DroppedMissingKey int64 // rows dropped for incomplete natural keys
	DroppedDuplicates int64 // key collisions resolved to the last arrival
	RowsOut           int64 // rows handed to storage
	Persisted         int64 // rows the backend reported applied

	// Failures lists extract-level errors. The load continues past
	// them; callers decide whether a partial load is acceptable.
	Failures []string
}

// Summary aggregates the results of a whole run.
type Summary struct {
	Job      string
	Elapsed  time.Duration
	Entities []EntityResult // plan order
}

// Failed reports whether any entity load recorded an extract failure.
func (s *Summary) Failed() bool {
	for _, r := range s.Entities {
		if len(r.Failures) > 0 {
			return true
		}
	}
	return false
}

// Log writes the per-entity summary lines in the standard logger format.
func (s *Summary) Log() {
	for _, r := range s.Entities {
		log.Printf(
			"summary: entity=%s table=%s mode=%s extracts=%d rows_in=%d parse_skipped=%d date_filtered=%d dropped_missing_key=%d dropped_duplicates=%d rows_out=%d persisted=%d failures=%d",
			r.Entity, r.Table, r.Mode, r.Extracts,
			r.RowsIn, r.ParseSkipped, r.DateFiltered,
			r.DroppedMissingKey, r.DroppedDuplicates,
			r.RowsOut, r.Persisted, len(r.Failures),
		)
		for _, f := range r.Failures {
			log.Printf("summary: entity=%s failure: %s", r.Entity, f)
		}
	}
	log.Printf("summary: job=%s elapsed=%s", s.Job, s.Elapsed.Truncate(time.Millisecond))
}

// Run executes the plan against a freshly opened repository.
//
// Entity loads run concurrently up to maxConcurrentLoads; post-load
// statements run only after every load succeeded. The summary is
// returned even when Run fails, with whatever progress was made.
func Run(ctx context.Context, plan config.Plan) (*Summary, error) {
	start := time.Now()

	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:   plan.Storage.Kind,
		DSN:    plan.Storage.DB.DSN,
		Schema: plan.Storage.DB.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", plan.Storage.Kind, err)
	}
	defer repo.Close()

	sum := &Summary{
		Job:      plan.Job,
		Entities: make([]EntityResult, len(plan.Entities)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i := range plan.Entities {
		i := i
		g.Go(func() error {
			res, err := runEntity(gctx, repo, plan, plan.Entities[i])
			sum.Entities[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		sum.Elapsed = time.Since(start)
		return sum, err
	}

	for _, stmt := range plan.PostLoad {
		t0 := time.Now()
		err := repo.Exec(ctx, stmt)
		metrics.RecordStep(plan.Job, "post_load", err, time.Since(t0))
		if err != nil {
			sum.Elapsed = time.Since(start)
			return sum, fmt.Errorf("post-load statement %q: %w", stmt, err)
		}
	}

	sum.Elapsed = time.Since(start)
	return sum, nil
}

// runEntity loads one entity: expand sources, parse and conform each
// extract, merge, window, dedup, apply. Extract failures are recorded
// in the result; only configuration and storage errors are returned.
func runEntity(ctx context.Context, repo storage.Repository, plan config.Plan, el config.EntityLoad) (EntityResult, error) {
	res := EntityResult{Entity: el.Entity}

	ent, err := schema.Lookup(el.Entity)
	if err != nil {
		return res, err
	}

	mode := ent.Mode
	if el.Mode != "" {
		mode = schema.ApplyMode(el.Mode)
	}
	res.Mode = mode

	tableName := ent.Table
	if el.Table != "" {
		tableName = el.Table
	}
	res.Table = tableName

	keys := make([]string, 0, len(ent.Key))
	keys = append(keys, ent.Key...)
	t := storage.Table{
		Schema:     plan.Storage.DB.Schema,
		Name:       tableName,
		Columns:    ent.Columns(),
		KeyColumns: keys,
	}

	if plan.Storage.DB.AutoCreateTable {
		if err := ensureTableFn(ctx, plan.Storage.Kind, repo, ent, t, mode == schema.ModeUpsert); err != nil {
			return res, fmt.Errorf("entity %q: ensure table: %w", el.Entity, err)
		}
	}

	sources, err := buildSources(el.Source)
	if err != nil {
		return res, fmt.Errorf("entity %q: %w", el.Entity, err)
	}

	var par parser.Parser = csvparser.NewParser(ent, csvparser.Options{
		Comma:  el.Options.Rune("delimiter", ','),
		Latin1: el.Options.Bool("latin1", false),
	})
	conform := transformer.Chain{
		builtin.Conform{Entity: ent},
		builtin.Coerce{Entity: ent},
	}

	combined := &records.Batch{
		Entity:  ent.Name,
		Columns: ent.Columns(),
	}
	for _, src := range sources {
		batch, skipped, err := parseExtract(ctx, plan.Job, par, conform, src)
		if err != nil {
			res.Failures = append(res.Failures, err.Error())
			log.Printf("entity=%s extract=%s skipped: %v", el.Entity, src.Name(), err)
			continue
		}
		res.Extracts++
		res.RowsIn += int64(len(batch.Records) + skipped)
		res.ParseSkipped += int64(skipped)
		combined.Records = append(combined.Records, batch.Records...)
	}

	// Window before dedup so a row inside the window never loses its
	// slot to a filtered-out row.
	if el.MinDate != "" {
		min, err := time.Parse("2006-01-02", el.MinDate)
		if err != nil {
			return res, fmt.Errorf("entity %q: min_date %q: %w", el.Entity, el.MinDate, err)
		}
		field, ok := dateKeyField(ent)
		if !ok {
			return res, fmt.Errorf("entity %q: min_date set but key has no date field", el.Entity)
		}
		before := int64(len(combined.Records))
		combined, err = builtin.MinDate{Field: field, Min: min}.Apply(combined)
		if err != nil {
			return res, fmt.Errorf("entity %q: window: %w", el.Entity, err)
		}
		res.DateFiltered = before - int64(len(combined.Records))
	}

	dd := &builtin.DeDup{Entity: ent}
	t0 := time.Now()
	final, err := dd.Apply(combined)
	metrics.RecordStep(plan.Job, "dedup", err, time.Since(t0))
	if err != nil {
		return res, fmt.Errorf("entity %q: dedup: %w", el.Entity, err)
	}
	stats := dd.Stats()
	res.DroppedMissingKey = int64(stats.DroppedMissingKey)
	res.DroppedDuplicates = int64(stats.DroppedDuplicates)
	res.RowsOut = int64(len(final.Records))

	if len(final.Records) > 0 {
		rows := final.Rows()
		t0 = time.Now()
		var n int64
		switch mode {
		case schema.ModeUpsert:
			n, err = repo.Upsert(ctx, t, rows)
		default:
			n, err = repo.Append(ctx, t, rows)
		}
		metrics.RecordStep(plan.Job, "apply", err, time.Since(t0))
		if err != nil {
			return res, fmt.Errorf("entity %q: apply (%s): %w", el.Entity, mode, err)
		}
		res.Persisted = n
		metrics.RecordBatches(plan.Job, 1)
	}

	metrics.RecordRow(plan.Job, "parsed", res.RowsIn)
	metrics.RecordRow(plan.Job, "parse_skipped", res.ParseSkipped)
	metrics.RecordRow(plan.Job, "date_filtered", res.DateFiltered)
	metrics.RecordRow(plan.Job, "dropped_missing_key", res.DroppedMissingKey)
	metrics.RecordRow(plan.Job, "dropped_duplicates", res.DroppedDuplicates)
	metrics.RecordRow(plan.Job, "persisted", res.Persisted)

	return res, nil
}

// parseExtract fetches one source and runs it through parse + conform +
// coerce. Any error here is an extract-level failure: the caller logs it
// and moves on to the next extract.
func parseExtract(ctx context.Context, job string, par parser.Parser, conform transformer.Chain, src datasource.Source) (*records.Batch, int, error) {
	t0 := time.Now()
	rc, err := src.Open(ctx)
	if err != nil {
		metrics.RecordStep(job, "fetch", err, time.Since(t0))
		return nil, 0, fmt.Errorf("open %s: %w", src.Name(), err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	metrics.RecordStep(job, "fetch", err, time.Since(t0))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	log.Printf("extract=%s bytes=%d xxh3=%016x", src.Name(), len(data), xxh3.Hash(data))

	t0 = time.Now()
	batch, skipped, err := par.Parse(bytes.NewReader(data), src.Name())
	metrics.RecordStep(job, "parse", err, time.Since(t0))
	if err != nil {
		return nil, 0, err
	}

	t0 = time.Now()
	out, err := conform.Apply(batch)
	metrics.RecordStep(job, "conform", err, time.Since(t0))
	if err != nil {
		return nil, 0, err
	}
	return out, skipped, nil
}

// buildSources turns a plan source into concrete datasources. File
// globs are expanded here; an empty expansion is not an error (the
// entity simply loads nothing).
func buildSources(s config.Source) ([]datasource.Source, error) {
	switch s.Kind {
	case "file":
		paths, err := file.Expand(s.Paths)
		if err != nil {
			return nil, fmt.Errorf("expand paths: %w", err)
		}
		out := make([]datasource.Source, 0, len(paths))
		for _, p := range paths {
			out = append(out, file.NewLocal(p))
		}
		return out, nil

	case "http":
		out := make([]datasource.Source, 0, len(s.URLs))
		for _, u := range s.URLs {
			out = append(out, httpds.NewRemote(u, httpds.Config{}))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("source kind %q not supported", s.Kind)
	}
}

// dateKeyField returns the first key field with a date type.
func dateKeyField(ent *schema.Entity) (string, bool) {
	for _, k := range ent.Key {
		if f, ok := ent.FieldByName(k); ok && f.Type == schema.TypeDate {
			return f.Name, true
		}
	}
	return "", false
}
