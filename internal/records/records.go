// Package records defines the in-memory batch model shared by every
// pipeline stage: a Record maps canonical field names to typed values,
// and a Batch carries an ordered set of Records plus provenance.
//
// A nil value means "missing". Once a batch has passed the coercion
// stage, values are one of: int64, float64, time.Time, string, or nil.
package records

import "time"

// Record is one logical row. Keys are column names; before the conform
// stage they are source column names, afterwards canonical field names.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsMissing reports whether the named field is absent, nil, or an
// empty string.
func (r Record) IsMissing(field string) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}

// Int returns the int64 value of field and whether it was present as
// an int64.
func (r Record) Int(field string) (int64, bool) {
	v, ok := r[field].(int64)
	return v, ok
}

// String returns the string value of field and whether it was present
// as a string.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field].(string)
	return v, ok
}

// Time returns the time.Time value of field and whether it was present
// as a time.Time.
func (r Record) Time(field string) (time.Time, bool) {
	v, ok := r[field].(time.Time)
	return v, ok
}

// Batch is the unit of work flowing through the pipeline: all records
// produced from one source extract, plus provenance used for logging
// and summaries.
type Batch struct {
	// Entity is the canonical entity name ("players", "rankings", ...).
	Entity string

	// Source identifies where the batch came from (file path or URL).
	Source string

	// Columns is the ordered column set shared by every record. Before
	// the conform stage it reflects the source layout; afterwards it is
	// exactly the canonical schema order.
	Columns []string

	// Records holds the rows in arrival order.
	Records []Record
}

// Rows projects the batch onto [][]any in Columns order, the shape the
// storage layer's bulk primitives accept.
func (b *Batch) Rows() [][]any {
	rows := make([][]any, len(b.Records))
	for i, rec := range b.Records {
		row := make([]any, len(b.Columns))
		for j, c := range b.Columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return rows
}
