package builtin

import (
	"fmt"
	"time"

	"tennisetl/internal/records"
)

// MinDate drops rows whose date Field is missing or earlier than Min.
// Used to window ranking and match loads (e.g. ignore rankings before
// the first season under study).
type MinDate struct {
	Field string
	Min   time.Time
}

// Apply filters the batch in place.
func (m MinDate) Apply(in *records.Batch) (*records.Batch, error) {
	if m.Min.IsZero() {
		return in, nil
	}
	out := in.Records[:0]
	for _, rec := range in.Records {
		t, ok := rec.Time(m.Field)
		if !ok || t.Before(m.Min) {
			continue
		}
		out = append(out, rec)
	}
	in.Records = out
	return in, nil
}

// asString renders any coerced value for the total-order fallback.
func asString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
