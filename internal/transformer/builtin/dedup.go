package builtin

import (
	"sort"
	"strings"
	"time"

	"tennisetl/internal/records"
	"tennisetl/internal/schema"
)

// DeDupStats reports what the deduplication stage did to a batch.
type DeDupStats struct {
	In                int // rows entering the stage
	DroppedMissingKey int // rows removed because a key field was missing
	DroppedDuplicates int // rows removed as duplicate keys
	Out               int // surviving rows
}

// DeDup collapses rows sharing a natural key into one.
//
// Rows whose key contains a missing component are dropped first (they
// could never be persisted under the key). Survivors are stable-sorted
// by the key fields in declared order, so rows with identical keys
// keep their arrival order; among them the last one wins. The result
// is therefore identical for any permutation of the input rows, and
// for rows that are only distinguished by arrival order the latest
// arrival wins, matching the historical loader behavior.
//
// DeDup is stateful per batch: construct one per Apply call and read
// Stats afterwards.
type DeDup struct {
	Entity *schema.Entity

	stats DeDupStats
}

// Stats returns the counts recorded by the last Apply.
func (d *DeDup) Stats() DeDupStats { return d.stats }

// Apply deduplicates the batch by the entity's natural key.
func (d *DeDup) Apply(in *records.Batch) (*records.Batch, error) {
	keys := d.Entity.Key
	d.stats = DeDupStats{In: len(in.Records)}
	if len(keys) == 0 || len(in.Records) == 0 {
		d.stats.Out = len(in.Records)
		return in, nil
	}

	keyed := make([]records.Record, 0, len(in.Records))
	for _, rec := range in.Records {
		missing := false
		for _, k := range keys {
			if rec.IsMissing(k) {
				missing = true
				break
			}
		}
		if missing {
			d.stats.DroppedMissingKey++
			continue
		}
		keyed = append(keyed, rec)
	}

	// Stable sort by key: ties (identical keys) preserve arrival order,
	// so "last" below means latest arrival for equal keys.
	sort.SliceStable(keyed, func(i, j int) bool {
		return compareKeys(keyed[i], keyed[j], keys) < 0
	})

	out := keyed[:0]
	for i, rec := range keyed {
		if i+1 < len(keyed) && compareKeys(rec, keyed[i+1], keys) == 0 {
			d.stats.DroppedDuplicates++
			continue
		}
		out = append(out, rec)
	}

	d.stats.Out = len(out)
	in.Records = out
	return in, nil
}

// compareKeys orders two records field-by-field over the key fields.
func compareKeys(a, b records.Record, keys []string) int {
	for _, k := range keys {
		if c := compareValues(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}

// compareValues defines a total order over coerced key values. Key
// fields are schema-typed, so both sides normally share a type; the
// string fallback keeps the order total if they do not.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	return strings.Compare(asString(a), asString(b))
}
