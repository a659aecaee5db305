// Package file implements the local-filesystem data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Local is a filesystem data source bound to one path.
type Local struct{ path string }

// NewLocal returns a Local source for the given path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the bound path.
func (l *Local) Name() string { return l.path }

// Open opens the path for reading. A canceled context returns the
// context error without touching the filesystem; filesystem errors are
// wrapped with the path while staying errors.Is-compatible (e.g.
// os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Expand resolves a list of literal paths and glob patterns into a
// sorted, de-duplicated list of paths. Literal paths are kept even
// when they do not exist (the open stage reports the miss); a pattern
// matching nothing simply contributes nothing.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pat := range patterns {
		if !hasGlobMeta(pat) {
			add(pat)
			continue
		}
		matches, err := filepath.Glob(pat)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pat, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

func hasGlobMeta(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}
