// Package schema holds the canonical schema registry: for each entity
// the ordered field list, semantic types, header synonyms, positional
// fallback layout, minimum-required fields, and the natural key used
// for upsert. Provider quirks live here as data so that supporting a
// new provider is a table change, not a code change.
package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// FieldType is the semantic type of a canonical field.
type FieldType string

const (
	// TypeIdentInt is an integer identifier (e.g. a numeric player id).
	TypeIdentInt FieldType = "ident_int"
	// TypeIdentText is a textual identifier that must never be coerced
	// to a number even when a given provider happens to use digits.
	TypeIdentText FieldType = "ident_text"
	// TypeText is free text, trimmed; empty after trim means missing.
	TypeText FieldType = "text"
	// TypeInt is a plain integer measure.
	TypeInt FieldType = "int"
	// TypeDecimal is a floating-point measure.
	TypeDecimal FieldType = "decimal"
	// TypeDate is a calendar date, compact YYYYMMDD in most extracts.
	TypeDate FieldType = "date"
)

// Field is one canonical column.
type Field struct {
	// Name is the canonical field name, also the target column name.
	Name string

	// Type drives coercion and sort order for key comparison.
	Type FieldType

	// Synonyms lists accepted source header names in resolution order.
	// The canonical name itself is always accepted first and does not
	// need to be repeated here.
	Synonyms []string

	// Required marks the field as part of the entity's minimum-required
	// set: if no source column resolves to it, the whole file fails.
	Required bool
}

// ApplyMode selects how a batch reaches the target table.
type ApplyMode string

const (
	// ModeAppend bulk-inserts the deduplicated batch (append-only
	// tables with no key constraint at the storage layer).
	ModeAppend ApplyMode = "append"
	// ModeUpsert stages the batch and merges it by natural key.
	ModeUpsert ApplyMode = "upsert"
)

// Entity is the canonical schema for one entity type.
type Entity struct {
	// Name is the entity name used in plans and summaries.
	Name string

	// Table is the default target table name (without schema prefix).
	Table string

	// Fields is the canonical column set in output order.
	Fields []Field

	// Key lists the natural-key fields in declared order.
	Key []string

	// Sentinels are canonicalized header names whose presence in the
	// first row marks the file as headered.
	Sentinels []string

	// Positional is the legacy header-less column order, given in
	// source column names (resolved through Synonyms like any header).
	Positional []string

	// Mode is the default apply mode; plans may override it.
	Mode ApplyMode
}

// Columns returns the canonical column names in schema order.
func (e *Entity) Columns() []string {
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Name
	}
	return cols
}

// FieldByName returns the field definition for a canonical name.
func (e *Entity) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeyFields returns the natural-key field definitions in key order.
func (e *Entity) KeyFields() []Field {
	out := make([]Field, 0, len(e.Key))
	for _, k := range e.Key {
		if f, ok := e.FieldByName(k); ok {
			out = append(out, f)
		}
	}
	return out
}

// Resolve maps a set of source column names onto canonical fields.
// For every canonical field it picks the first synonym (canonical name
// first, then Synonyms in order) that appears among the canonicalized
// source columns. Fields with no match are reported missing; if any of
// them is Required the error lists them and the caller must fail the
// whole file.
//
// The returned map is canonical field name -> matching source column
// name (the original, pre-canonicalization spelling).
func (e *Entity) Resolve(sourceCols []string) (map[string]string, error) {
	bySlug := make(map[string]string, len(sourceCols))
	for _, c := range sourceCols {
		slug := Canon(c)
		if _, dup := bySlug[slug]; !dup {
			bySlug[slug] = c
		}
	}

	resolved := make(map[string]string, len(e.Fields))
	var missingRequired []string
	for _, f := range e.Fields {
		src, ok := bySlug[Canon(f.Name)]
		if !ok {
			for _, syn := range f.Synonyms {
				if s, found := bySlug[Canon(syn)]; found {
					src, ok = s, true
					break
				}
			}
		}
		if ok {
			resolved[f.Name] = src
			continue
		}
		if f.Required {
			missingRequired = append(missingRequired, f.Name)
		}
	}
	if len(missingRequired) > 0 {
		return nil, fmt.Errorf("%s: missing required columns: %s",
			e.Name, strings.Join(missingRequired, ", "))
	}
	return resolved, nil
}

// Headered reports whether row looks like a header row: at least one
// cell canonicalizes to one of the entity's sentinel names.
func (e *Entity) Headered(row []string) bool {
	for _, cell := range row {
		slug := Canon(cell)
		for _, s := range e.Sentinels {
			if slug == s {
				return true
			}
		}
	}
	return false
}

// Canon canonicalizes a source column name for matching: lowercase,
// trimmed, with every run of non-alphanumeric characters collapsed to
// a single underscore. "Winner Rank-Points " and "winner_rank_points"
// compare equal.
func Canon(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}
