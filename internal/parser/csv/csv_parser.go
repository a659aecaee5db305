// Package csv reads provider CSV extracts into raw record batches.
//
// The parser is deliberately lenient: providers disagree on headers,
// quoting, and encodings, so it tolerates lazy quotes, strips a UTF-8
// BOM, optionally decodes Latin-1 input, and soft-skips rows wider
// than the column set (counted, not fatal). Positional files pad rows
// missing trailing columns with empty cells instead of skipping them,
// since legacy extracts drop trailing blanks. Header
// detection peeks at the first row: if any cell canonicalizes to one
// of the entity's sentinel column names the file is headered,
// otherwise the entity's legacy positional layout applies.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"tennisetl/internal/records"
	"tennisetl/internal/schema"
)

// Options configures the CSV parser. Zero values give sensible
// defaults.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// Latin1 decodes the input as ISO 8859-1 before parsing. One of
	// the player reference providers ships Latin-1 files.
	Latin1 bool

	// MaxLoggedSkips caps how many skipped rows are logged per file.
	MaxLoggedSkips int
}

// Parser parses one entity's CSV extracts. It is safe to reuse across
// inputs but is not concurrency-safe.
type Parser struct {
	ent *schema.Entity
	opt Options
}

// NewParser constructs a Parser for the given entity definition.
func NewParser(ent *schema.Entity, opt Options) *Parser {
	if opt.MaxLoggedSkips == 0 {
		opt.MaxLoggedSkips = 20
	}
	return &Parser{ent: ent, opt: opt}
}

const utf8BOM = "\uFEFF"

// Parse consumes the reader and returns a raw batch whose columns are
// the source column names (header row or positional layout) and whose
// cell values are trimmed strings, with empty cells as nil. Rows in a
// positional file that end early get nil for the missing trailing
// columns. The int result counts soft-skipped rows (unparsable lines,
// width mismatches).
//
// A file that cannot be read as a table at all, or that has neither a
// detectable header nor a positional layout, is a structural failure
// for the whole file.
func (p *Parser) Parse(r io.Reader, source string) (*records.Batch, int, error) {
	if p.opt.Latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err == io.EOF {
		return &records.Batch{Entity: p.ent.Name, Source: source}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read first row: %w", source, err)
	}
	first = stripBOM(first)

	var columns []string
	var pending []string // first row held back when it is data, not header
	var padShort bool    // positional layouts treat missing trailing columns as empty
	if p.ent.Headered(first) {
		columns = trimAll(first)
	} else {
		if len(p.ent.Positional) == 0 {
			return nil, 0, fmt.Errorf("%s: no header row detected and %s has no positional layout",
				source, p.ent.Name)
		}
		columns = append([]string(nil), p.ent.Positional...)
		pending = first
		padShort = true
	}

	batch := &records.Batch{
		Entity:  p.ent.Name,
		Source:  source,
		Columns: columns,
	}

	var skipped int
	add := func(row []string, line int) {
		if len(row) > len(columns) || (len(row) < len(columns) && !padShort) {
			if skipped < p.opt.MaxLoggedSkips {
				log.Printf("%s: skipping row %d: expected %d fields, got %d",
					source, line, len(columns), len(row))
			}
			skipped++
			return
		}
		rec := make(records.Record, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = emptyToNil(strings.TrimSpace(row[i]))
			} else {
				rec[col] = nil
			}
		}
		batch.Records = append(batch.Records, rec)
	}

	line := 1
	if pending != nil {
		add(pending, line)
	}
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < p.opt.MaxLoggedSkips {
				log.Printf("%s: skipping row %d: %v", source, line, err)
			}
			skipped++
			continue
		}
		add(row, line)
	}

	return batch, skipped, nil
}

// stripBOM removes a UTF-8 BOM from the first cell if present.
func stripBOM(row []string) []string {
	if len(row) > 0 {
		row[0] = strings.TrimPrefix(row[0], utf8BOM)
	}
	return row
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// emptyToNil converts an empty string to nil; everything else is
// returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
