package builtin

import (
	"math/rand"
	"reflect"
	"strconv"
	"testing"
	"time"

	"tennisetl/internal/records"
	"tennisetl/internal/schema"
)

// rankingsBatch builds a raw rankings batch from rows in positional order.
func rankingsBatch(ent *schema.Entity, recs ...records.Record) *records.Batch {
	return &records.Batch{
		Entity:  ent.Name,
		Source:  "test",
		Columns: ent.Columns(),
		Records: recs,
	}
}

func rankingRow(date, rank, player, points string) records.Record {
	rec := records.Record{}
	put := func(k, v string) {
		if v == "" {
			rec[k] = nil
			return
		}
		rec[k] = v
	}
	put("ranking_date", date)
	put("rank", rank)
	put("player_id", player)
	put("points", points)
	return rec
}

// coerced runs the coercion stage, failing the test on error.
func coerced(t *testing.T, ent *schema.Entity, b *records.Batch) *records.Batch {
	t.Helper()
	out, err := Coerce{Entity: ent}.Apply(b)
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	return out
}

/*
TestDeDup_LastArrivalWins: two rows with the same (date, player) key in
arrival order A then B; after dedup only B survives and the
dropped-duplicate count is 1.
*/
func TestDeDup_LastArrivalWins(t *testing.T) {
	ent, err := schema.Lookup(schema.EntityRankings)
	if err != nil {
		t.Fatal(err)
	}
	in := coerced(t, ent, rankingsBatch(ent,
		rankingRow("20240101", "1", "104925", "9000"), // A
		rankingRow("20240101", "1", "104925", "9855"), // B, same key
	))

	dd := &DeDup{Entity: ent}
	out, err := dd.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(out.Records))
	}
	if got := out.Records[0]["points"]; got != int64(9855) {
		t.Errorf("survivor points = %v; want the last arrival's 9855", got)
	}
	stats := dd.Stats()
	if stats.DroppedDuplicates != 1 {
		t.Errorf("DroppedDuplicates = %d, want 1", stats.DroppedDuplicates)
	}
	if stats.In != 2 || stats.Out != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

/*
TestDeDup_MissingKeyDropped: a row lacking a key component is dropped
and counted; the rest of the batch survives.
*/
func TestDeDup_MissingKeyDropped(t *testing.T) {
	ent, err := schema.Lookup(schema.EntityRankings)
	if err != nil {
		t.Fatal(err)
	}
	in := coerced(t, ent, rankingsBatch(ent,
		rankingRow("20240101", "1", "104925", "9855"),
		rankingRow("20240101", "2", "", "8550"), // no player_id
		rankingRow("", "3", "106421", "7700"),   // no date
	))

	dd := &DeDup{Entity: ent}
	out, err := dd.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(out.Records))
	}
	stats := dd.Stats()
	if stats.DroppedMissingKey != 2 {
		t.Errorf("DroppedMissingKey = %d, want 2", stats.DroppedMissingKey)
	}
	if stats.DroppedDuplicates != 0 {
		t.Errorf("DroppedDuplicates = %d, want 0", stats.DroppedDuplicates)
	}
}

/*
TestDeDup_DeterministicUnderPermutation: any shuffle of the batch
deduplicates to the same key-ordered sequence, and for a duplicated
key the survivor is whichever copy arrived later in that shuffle.
That holds only if the key sort is stable.
*/
func TestDeDup_DeterministicUnderPermutation(t *testing.T) {
	ent, err := schema.Lookup(schema.EntityRankings)
	if err != nil {
		t.Fatal(err)
	}

	// Rows 0 and 1 collide on (date, player); points tell them apart.
	base := []records.Record{
		rankingRow("20240101", "1", "104925", "9855"),
		rankingRow("20240101", "7", "104925", "1111"),
		rankingRow("20240101", "2", "106421", "8550"),
		rankingRow("20240108", "1", "104925", "9900"),
		rankingRow("20240108", "2", "207989", "8100"),
		rankingRow("20231225", "5", "100644", "4405"),
	}

	run := func(recs []records.Record) []records.Record {
		in := coerced(t, ent, rankingsBatch(ent, cloneAll(recs)...))
		dd := &DeDup{Entity: ent}
		out, err := dd.Apply(in)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		return out.Records
	}

	keysOf := func(recs []records.Record) [][2]any {
		keys := make([][2]any, len(recs))
		for i, r := range recs {
			keys[i] = [2]any{r["ranking_date"], r["player_id"]}
		}
		return keys
	}

	wantKeys := keysOf(run(base))
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := cloneAll(base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		// The later arrival of the colliding pair must survive.
		var wantPoints any
		for _, r := range shuffled {
			if r["player_id"] == "104925" && r["ranking_date"] == "20240101" {
				wantPoints = r["points"]
			}
		}

		got := run(shuffled)
		if !reflect.DeepEqual(keysOf(got), wantKeys) {
			t.Fatalf("trial %d: key order not permutation-stable\n got %v\nwant %v",
				trial, keysOf(got), wantKeys)
		}
		for _, r := range got {
			if r["player_id"] == int64(104925) && r["ranking_date"] == mustDate(t, "2024-01-01") {
				if r["points"] != asInt64(t, wantPoints) {
					t.Fatalf("trial %d: survivor points = %v, want later arrival's %v",
						trial, r["points"], wantPoints)
				}
			}
		}
	}
}

func asInt64(t *testing.T, v any) int64 {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected raw string cell, got %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return n
}

func cloneAll(recs []records.Record) []records.Record {
	out := make([]records.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

/*
TestMinDate filters out rows missing the date or dated before the
window, and is a no-op with a zero minimum.
*/
func TestMinDate(t *testing.T) {
	ent, err := schema.Lookup(schema.EntityRankings)
	if err != nil {
		t.Fatal(err)
	}
	build := func() *records.Batch {
		return coerced(t, ent, rankingsBatch(ent,
			rankingRow("20141229", "1", "104925", "9000"),
			rankingRow("20150105", "1", "104925", "9100"),
			rankingRow("", "2", "106421", "8550"),
		))
	}

	out, err := MinDate{Field: "ranking_date", Min: mustDate(t, "2015-01-01")}.Apply(build())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(out.Records))
	}
	if got := out.Records[0]["points"]; got != int64(9100) {
		t.Errorf("survivor points = %v", got)
	}

	out, err = MinDate{Field: "ranking_date"}.Apply(build())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out.Records) != 3 {
		t.Errorf("zero Min should be a no-op, got %d records", len(out.Records))
	}
}
