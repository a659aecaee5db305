// Package config defines the JSON-serializable load plan for the
// ingestion pipeline. A plan names the storage backend once and lists
// the entity loads to run against it; each entity load points at one
// or more source extracts and may override the entity's default apply
// mode. Decoding is performed by the standard library with a small
// Options helper for free-form per-load settings.
//
// Example (trimmed):
//
//	{
//	  "job": "atp_ingest",
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgres://...", "schema": "atp" } },
//	  "entities": [
//	    { "entity": "players",  "source": { "kind": "file", "paths": ["data/atp_players.csv"] } },
//	    { "entity": "rankings", "source": { "kind": "file", "paths": ["data/atp_rankings_*.csv"] },
//	      "min_date": "2015-01-01" },
//	    { "entity": "matches",  "source": { "kind": "file", "paths": ["data/atp_matches_*.csv"] } }
//	  ]
//	}
package config

import "encoding/json"

// Plan is the top-level object decoded from a plan file.
type Plan struct {
	// Job labels the run in logs and metrics.
	Job string `json:"job"`

	// Storage selects and configures the backend shared by all loads.
	Storage Storage `json:"storage"`

	// Entities lists the loads to run, in declared order. Loads for
	// distinct entities may execute concurrently.
	Entities []EntityLoad `json:"entities"`

	// PostLoad are statements executed in order after every entity load
	// succeeds, e.g. the storage engine's rating-recompute call.
	PostLoad []string `json:"post_load,omitempty"`
}

// Storage selects the sink used to persist batches.
type Storage struct {
	// Kind selects the backend: "postgres", "mssql", "sqlite", "mysql".
	Kind string `json:"kind"`

	// DB configures the selected backend.
	DB DBConfig `json:"db"`
}

// DBConfig configures a database sink.
type DBConfig struct {
	// DSN is the backend connection string. When empty, the CLI falls
	// back to the PG_URL environment variable.
	DSN string `json:"dsn"`

	// Schema is the optional namespace for target tables (e.g. "atp").
	Schema string `json:"schema,omitempty"`

	// AutoCreateTable creates missing target tables before loading.
	AutoCreateTable bool `json:"auto_create_table,omitempty"`
}

// EntityLoad is one entity's load instruction.
type EntityLoad struct {
	// Entity is the canonical entity name ("players", "rankings",
	// "matches", "players_ref").
	Entity string `json:"entity"`

	// Source says where the extracts come from.
	Source Source `json:"source"`

	// Mode overrides the entity's default apply mode; "append" or
	// "upsert". Empty keeps the default.
	Mode string `json:"mode,omitempty"`

	// Table overrides the entity's default target table name.
	Table string `json:"table,omitempty"`

	// MinDate windows date-keyed loads: rows whose key date falls
	// before it are dropped. ISO format (2015-01-01).
	MinDate string `json:"min_date,omitempty"`

	// Options carries parser settings ("delimiter", "latin1").
	Options Options `json:"options,omitempty"`
}

// Source identifies where one load's extracts come from.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	// Paths lists file paths and glob patterns (kind "file").
	Paths []string `json:"paths,omitempty"`

	// URLs lists download URLs (kind "http").
	URLs []string `json:"urls,omitempty"`
}

// Options fetches typed values from a free-form JSON map without
// pulling in a configuration library. Minimal coercion only; defaults
// are returned for absent keys or unexpected types.
type Options map[string]any

// String returns the string for key, or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool for key, or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
// Useful for single-character settings such as a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON decodes a missing or null options object into a
// non-nil empty map, so call sites need no nil checks.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
