package builtin

import (
	"strconv"
	"strings"
	"time"

	"tennisetl/internal/records"
	"tennisetl/internal/schema"
)

// CompactDateLayout is the primary date encoding used by the ranking
// and match extracts: four-digit year, two-digit month, two-digit day,
// no separators.
const CompactDateLayout = "20060102"

// fallbackDateLayouts are tried in order when the compact parse fails.
// Some spreadsheet-exported provider files carry separated or
// timestamped dates.
var fallbackDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"01/02/2006",
	"2.1.2006",
}

// Coerce converts every cell of a conformed batch from raw text into
// the field's declared type. Coercion is fail-soft per cell: an
// unparsable number or date becomes missing and the row is kept.
// Textual identifier fields are never coerced to integers, even when a
// provider's identifiers happen to be numeric.
type Coerce struct {
	Entity *schema.Entity
}

// Apply coerces the batch in place and returns it.
func (c Coerce) Apply(in *records.Batch) (*records.Batch, error) {
	for _, rec := range in.Records {
		for _, f := range c.Entity.Fields {
			v, ok := rec[f.Name]
			if !ok || v == nil {
				rec[f.Name] = nil
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				// Already typed (e.g. a re-run over coerced records).
				continue
			}
			rec[f.Name] = coerceCell(s, f.Type)
		}
	}
	return in, nil
}

// coerceCell converts one raw cell to the target type, or nil.
func coerceCell(s string, t schema.FieldType) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch t {
	case schema.TypeIdentInt, schema.TypeInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		// Some extracts write integers as "123.0".
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return nil
	case schema.TypeDecimal:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return nil
	case schema.TypeDate:
		return parseDate(s)
	default: // text and textual identifiers
		return s
	}
}

// parseDate tries the compact layout first, then the flexible
// fallbacks. Returns nil when nothing matches.
func parseDate(s string) any {
	if t, err := time.Parse(CompactDateLayout, s); err == nil {
		return t
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}
