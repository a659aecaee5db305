// Package config tests exercise the JSON plan decoding helpers. The
// focus is the Options helper methods and the plan-level defaults a
// decoded document must come out with.
package config

import (
	"encoding/json"
	"testing"
)

/*
TestOptionsString verifies that Options.String returns:
 1. the string value when present and of the correct type,
 2. the provided default when the key is missing or not a string.
*/
func TestOptionsString(t *testing.T) {
	o := Options{
		"s": "ok",
		"n": 123,
	}

	tests := []struct {
		key string
		def string
		got string
	}{
		{"s", "zzz", "ok"},
		{"n", "def", "def"},
		{"missing", "fallback", "fallback"},
	}
	for _, tc := range tests {
		if got := o.String(tc.key, tc.def); got != tc.got {
			t.Fatalf("String(%q,%q)=%q; want %q", tc.key, tc.def, got, tc.got)
		}
	}
}

/*
TestOptionsBool and TestOptionsRune cover the remaining typed getters,
including the delimiter use case where only the first rune matters.
*/
func TestOptionsBool(t *testing.T) {
	o := Options{"latin1": true, "s": "yes"}

	if !o.Bool("latin1", false) {
		t.Error("Bool(latin1) = false")
	}
	if o.Bool("s", false) {
		t.Error("non-bool value should fall back to default")
	}
	if !o.Bool("missing", true) {
		t.Error("missing key should return default")
	}
}

func TestOptionsRune(t *testing.T) {
	o := Options{"delimiter": ";", "multi": "ab", "empty": "", "n": 4}

	tests := []struct {
		key  string
		def  rune
		want rune
	}{
		{"delimiter", ',', ';'},
		{"multi", ',', 'a'},
		{"empty", ',', ','},
		{"n", ',', ','},
		{"missing", '\t', '\t'},
	}
	for _, tc := range tests {
		if got := o.Rune(tc.key, tc.def); got != tc.want {
			t.Errorf("Rune(%q) = %q; want %q", tc.key, got, tc.want)
		}
	}
}

/*
TestOptionsUnmarshal_NullAndMissing: "options": null and an absent
options object both decode to a usable empty map.
*/
func TestOptionsUnmarshal_NullAndMissing(t *testing.T) {
	var withNull EntityLoad
	if err := json.Unmarshal([]byte(`{"entity":"players","options":null}`), &withNull); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if withNull.Options == nil {
		t.Error("null options should decode to an empty map")
	}
	if got := withNull.Options.String("delimiter", ","); got != "," {
		t.Errorf("default lookup on empty options = %q", got)
	}
}

/*
TestPlanDecode decodes a realistic plan document end to end.
*/
func TestPlanDecode(t *testing.T) {
	doc := `{
	  "job": "atp_ingest",
	  "storage": {
	    "kind": "postgres",
	    "db": { "dsn": "postgres://localhost/tennis", "schema": "atp", "auto_create_table": true }
	  },
	  "entities": [
	    { "entity": "players", "source": { "kind": "file", "paths": ["data/atp_players.csv"] } },
	    { "entity": "rankings",
	      "source": { "kind": "file", "paths": ["data/atp_rankings_*.csv"] },
	      "min_date": "2015-01-01" },
	    { "entity": "players_ref",
	      "source": { "kind": "http", "urls": ["https://example.com/players.csv"] },
	      "mode": "upsert",
	      "options": { "latin1": true, "delimiter": ";" } }
	  ],
	  "post_load": ["SELECT processed.rebuild_elo();"]
	}`

	var p Plan
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if p.Job != "atp_ingest" || p.Storage.Kind != "postgres" {
		t.Errorf("plan header decoded wrong: %+v", p)
	}
	if !p.Storage.DB.AutoCreateTable || p.Storage.DB.Schema != "atp" {
		t.Errorf("db config decoded wrong: %+v", p.Storage.DB)
	}
	if len(p.Entities) != 3 {
		t.Fatalf("entities = %d, want 3", len(p.Entities))
	}
	if p.Entities[1].MinDate != "2015-01-01" {
		t.Errorf("min_date = %q", p.Entities[1].MinDate)
	}
	ref := p.Entities[2]
	if !ref.Options.Bool("latin1", false) || ref.Options.Rune("delimiter", ',') != ';' {
		t.Errorf("options decoded wrong: %v", ref.Options)
	}
	if len(p.PostLoad) != 1 {
		t.Errorf("post_load = %v", p.PostLoad)
	}
}
