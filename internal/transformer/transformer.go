// Package transformer defines the stage contract for the ingestion
// pipeline: each stage consumes a batch and produces a batch. An error
// from a stage is a structural failure that aborts the whole file;
// per-cell problems never surface as errors (stages recover them as
// missing values or dropped rows).
package transformer

import "tennisetl/internal/records"

// Transformer is one pipeline stage.
type Transformer interface {
	Apply(*records.Batch) (*records.Batch, error)
}

// Chain is an ordered list of transformers applied left to right.
// The first error stops the chain.
type Chain []Transformer

// Apply runs every stage in order.
func (c Chain) Apply(in *records.Batch) (*records.Batch, error) {
	out := in
	var err error
	for _, t := range c {
		out, err = t.Apply(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
