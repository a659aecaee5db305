// Package builtin contains the reusable pipeline stages: schema
// conformance, type coercion, date filtering, and key deduplication.
package builtin

import (
	"fmt"

	"tennisetl/internal/records"
	"tennisetl/internal/schema"
)

// Conform reconciles a raw source batch onto the entity's canonical
// column set. Source columns are matched case-, whitespace- and
// punctuation-insensitively against each canonical field's synonym
// list (first match wins). Canonical columns absent from the source
// are added as missing; a missing minimum-required column fails the
// whole batch. Output column order is always the schema order,
// independent of source order.
type Conform struct {
	Entity *schema.Entity
}

// Apply returns a new batch shaped exactly like the canonical schema.
func (c Conform) Apply(in *records.Batch) (*records.Batch, error) {
	resolved, err := c.Entity.Resolve(in.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Source, err)
	}

	out := &records.Batch{
		Entity:  in.Entity,
		Source:  in.Source,
		Columns: c.Entity.Columns(),
	}
	out.Records = make([]records.Record, len(in.Records))
	for i, rec := range in.Records {
		conformed := make(records.Record, len(out.Columns))
		for _, f := range c.Entity.Fields {
			src, ok := resolved[f.Name]
			if !ok {
				conformed[f.Name] = nil
				continue
			}
			conformed[f.Name] = rec[src]
		}
		out.Records[i] = conformed
	}
	return out, nil
}
