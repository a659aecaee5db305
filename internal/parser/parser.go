// Package parser defines the contract between source extracts and the
// transform pipeline.
package parser

import (
	"io"

	"tennisetl/internal/records"
)

// Parser turns one source extract into a raw record batch. The int
// result counts soft-skipped rows; an error means the extract is
// structurally unusable as a whole.
type Parser interface {
	Parse(r io.Reader, source string) (*records.Batch, int, error)
}
