// Package datasource abstracts where provider extracts come from: a
// local file on disk or an HTTP download. The pipeline only ever sees
// an opened reader plus a name used for provenance in summaries.
package datasource

import (
	"context"
	"io"
)

// Source is one openable input.
type Source interface {
	// Name identifies the source in logs and summaries (path or URL).
	Name() string

	// Open returns the raw byte stream. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
}
