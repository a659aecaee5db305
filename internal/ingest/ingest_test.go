package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tennisetl/internal/config"

	// register the backend the tests load into.
	_ "tennisetl/internal/storage/sqlite"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testPlan(dbPath string, entities ...config.EntityLoad) config.Plan {
	return config.Plan{
		Job: "test_ingest",
		Storage: config.Storage{
			Kind: "sqlite",
			DB: config.DBConfig{
				DSN:             "file:" + dbPath,
				AutoCreateTable: true,
			},
		},
		Entities: entities,
	}
}

func queryDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countTable(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

const matchesHeader = "tourney_id,tourney_name,surface,tourney_date,match_num,winner_id,loser_id,score\n"

/*
TestRun_EndToEnd loads rankings from two extracts into a fresh SQLite
database: globs expand, the header-less positional layout parses,
cross-extract duplicates collapse to the last arrival, and rows with
incomplete keys drop without failing the load.
*/
func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "rankings_a.csv",
		"20240101,1,104925,9000\n"+
			"20240101,2,106421,8550\n")
	writeFile(t, dir, "rankings_b.csv",
		"20240101,1,104925,9855\n"+ // same key as file a, later arrival wins
			"20240108,1,104925,9900\n"+
			"20240108,,,\n") // missing key components

	plan := testPlan(dbPath, config.EntityLoad{
		Entity: "rankings",
		Source: config.Source{Kind: "file", Paths: []string{filepath.Join(dir, "rankings_*.csv")}},
	})

	sum, err := Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed() {
		t.Fatalf("unexpected failures: %+v", sum.Entities)
	}

	res := sum.Entities[0]
	if res.Extracts != 2 {
		t.Errorf("Extracts = %d, want 2", res.Extracts)
	}
	if res.RowsIn != 5 {
		t.Errorf("RowsIn = %d, want 5", res.RowsIn)
	}
	if res.DroppedMissingKey != 1 {
		t.Errorf("DroppedMissingKey = %d, want 1", res.DroppedMissingKey)
	}
	if res.DroppedDuplicates != 1 {
		t.Errorf("DroppedDuplicates = %d, want 1", res.DroppedDuplicates)
	}
	if res.RowsOut != 3 || res.Persisted != 3 {
		t.Errorf("RowsOut = %d, Persisted = %d, want 3/3", res.RowsOut, res.Persisted)
	}

	db := queryDB(t, dbPath)
	if got := countTable(t, db, "rankings"); got != 3 {
		t.Errorf("rankings rows = %d, want 3", got)
	}
	var points int64
	err = db.QueryRow(
		"SELECT points FROM rankings WHERE ranking_date = '2024-01-01' AND player_id = 104925",
	).Scan(&points)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if points != 9855 {
		t.Errorf("points = %d; want the later extract's 9855", points)
	}
}

/*
TestRun_UpsertIdempotent: running the identical match plan twice leaves
the same rows and values as running it once.
*/
func TestRun_UpsertIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "matches.csv", matchesHeader+
		"2024-0404,Monte Carlo Masters,Clay,20240407,1,104925,106421,6-3 6-2\n"+
		"2024-0404,Monte Carlo Masters,Clay,20240407,2,206173,207989,7-5 6-4\n")

	plan := testPlan(dbPath, config.EntityLoad{
		Entity: "matches",
		Source: config.Source{Kind: "file", Paths: []string{filepath.Join(dir, "matches.csv")}},
	})

	for run := 1; run <= 2; run++ {
		sum, err := Run(context.Background(), plan)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if got := sum.Entities[0].Persisted; got != 2 {
			t.Errorf("run %d: Persisted = %d, want 2", run, got)
		}
	}

	db := queryDB(t, dbPath)
	if got := countTable(t, db, "matches"); got != 2 {
		t.Errorf("matches rows = %d, want 2 after two identical runs", got)
	}
}

/*
TestRun_RowWithoutMatchNum: a match row lacking its match number drops
before apply while the rest of the batch still lands.
*/
func TestRun_RowWithoutMatchNum(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "matches.csv", matchesHeader+
		"2024-0404,Monte Carlo Masters,Clay,20240407,1,104925,106421,6-3 6-2\n"+
		"2024-0404,Monte Carlo Masters,Clay,20240407,,206173,207989,7-5 6-4\n")

	plan := testPlan(dbPath, config.EntityLoad{
		Entity: "matches",
		Source: config.Source{Kind: "file", Paths: []string{filepath.Join(dir, "matches.csv")}},
	})

	sum, err := Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := sum.Entities[0]
	if res.DroppedMissingKey != 1 || res.Persisted != 1 {
		t.Errorf("DroppedMissingKey = %d, Persisted = %d, want 1/1", res.DroppedMissingKey, res.Persisted)
	}
}

/*
TestRun_ExtractFailureIsolated: an extract whose header cannot satisfy
the required columns is recorded as a failure; the other extract still
loads and Run reports success.
*/
func TestRun_ExtractFailureIsolated(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "players_good.csv",
		"player_id,name_first,name_last,hand,dob,ioc,height\n"+
			"104925,Novak,Djokovic,R,19870522,SRB,188\n")
	writeFile(t, dir, "players_bad.csv",
		"player_id,name_first\n"+
			"1,Ghost\n")

	plan := testPlan(dbPath, config.EntityLoad{
		Entity: "players",
		Source: config.Source{Kind: "file", Paths: []string{
			filepath.Join(dir, "players_good.csv"),
			filepath.Join(dir, "players_bad.csv"),
		}},
	})

	sum, err := Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := sum.Entities[0]
	if len(res.Failures) != 1 {
		t.Fatalf("Failures = %v, want exactly one", res.Failures)
	}
	if !strings.Contains(res.Failures[0], "players_bad.csv") {
		t.Errorf("failure does not name the extract: %q", res.Failures[0])
	}
	if res.Extracts != 1 || res.Persisted != 1 {
		t.Errorf("Extracts = %d, Persisted = %d, want 1/1", res.Extracts, res.Persisted)
	}
	if !sum.Failed() {
		t.Error("Summary.Failed() = false, want true")
	}

	db := queryDB(t, dbPath)
	if got := countTable(t, db, "players"); got != 1 {
		t.Errorf("players rows = %d, want 1", got)
	}
}

/*
TestRun_MinDateWindow drops rows dated before the configured window
ahead of dedup and apply.
*/
func TestRun_MinDateWindow(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "rankings.csv",
		"20141229,1,104925,9000\n"+
			"20150105,1,104925,9100\n")

	plan := testPlan(dbPath, config.EntityLoad{
		Entity:  "rankings",
		Source:  config.Source{Kind: "file", Paths: []string{filepath.Join(dir, "rankings.csv")}},
		MinDate: "2015-01-01",
	})

	sum, err := Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := sum.Entities[0]
	if res.DateFiltered != 1 || res.Persisted != 1 {
		t.Errorf("DateFiltered = %d, Persisted = %d, want 1/1", res.DateFiltered, res.Persisted)
	}
}

/*
TestRun_ModeOverride: a plan-level mode override switches an
upsert-default entity to append.
*/
func TestRun_ModeOverride(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "matches.csv", matchesHeader+
		"2024-0404,Monte Carlo Masters,Clay,20240407,1,104925,106421,6-3 6-2\n")

	plan := testPlan(dbPath, config.EntityLoad{
		Entity: "matches",
		Mode:   "append",
		Source: config.Source{Kind: "file", Paths: []string{filepath.Join(dir, "matches.csv")}},
	})

	for run := 1; run <= 2; run++ {
		if _, err := Run(context.Background(), plan); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	db := queryDB(t, dbPath)
	if got := countTable(t, db, "matches"); got != 2 {
		t.Errorf("matches rows = %d, want 2 (append accumulates)", got)
	}
}

/*
TestRun_PostLoad executes post-load statements after every entity
succeeded.
*/
func TestRun_PostLoad(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tennis.db")

	writeFile(t, dir, "rankings.csv", "20240101,1,104925,9855\n")

	plan := testPlan(dbPath, config.EntityLoad{
		Entity: "rankings",
		Source: config.Source{Kind: "file", Paths: []string{filepath.Join(dir, "rankings.csv")}},
	})
	plan.PostLoad = []string{
		"CREATE TABLE load_marks (note TEXT)",
		"INSERT INTO load_marks VALUES ('done')",
	}

	if _, err := Run(context.Background(), plan); err != nil {
		t.Fatalf("Run: %v", err)
	}

	db := queryDB(t, dbPath)
	if got := countTable(t, db, "load_marks"); got != 1 {
		t.Errorf("load_marks rows = %d, want 1", got)
	}
}

/*
TestRun_UnknownSourceKind rejects a source without an explicit kind,
matching the validator's contract.
*/
func TestRun_UnknownSourceKind(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan(filepath.Join(dir, "tennis.db"), config.EntityLoad{
		Entity: "rankings",
		Source: config.Source{Paths: []string{filepath.Join(dir, "rankings.csv")}},
	})
	if _, err := Run(context.Background(), plan); err == nil {
		t.Fatal("expected error for empty source kind")
	}
}

/*
TestRun_UnknownStorage fails fast before touching any source.
*/
func TestRun_UnknownStorage(t *testing.T) {
	plan := config.Plan{
		Job:     "bad",
		Storage: config.Storage{Kind: "oracle"},
		Entities: []config.EntityLoad{
			{Entity: "players", Source: config.Source{Kind: "file", Paths: []string{"x.csv"}}},
		},
	}
	if _, err := Run(context.Background(), plan); err == nil {
		t.Fatal("expected error for unregistered storage kind")
	}
}
