// Command inspect examines a provider extract before it goes into a
// load plan: which entity schema the file resolves against, how the
// header (or positional layout) maps onto canonical columns, and how
// many rows parse cleanly.
//
// Usage:
//
//	inspect -entity matches data/atp_matches_2024.csv
//	inspect data/unknown.csv          # try every registered entity
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	csvparser "tennisetl/internal/parser/csv"
	"tennisetl/internal/schema"
)

func main() {
	var (
		entityName string
		delimiter  string
		latin1     bool
	)
	flag.StringVar(&entityName, "entity", "", "entity schema to resolve against (default: try all)")
	flag.StringVar(&delimiter, "delimiter", ",", "field delimiter")
	flag.BoolVar(&latin1, "latin1", false, "decode the file as ISO 8859-1")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <extract.csv>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	var names []string
	if entityName != "" {
		names = []string{entityName}
	} else {
		names = schema.Names()
		sort.Strings(names)
	}

	opt := csvparser.Options{Latin1: latin1}
	if delimiter != "" {
		opt.Comma = []rune(delimiter)[0]
	}

	ok := false
	for _, name := range names {
		if inspect(path, name, opt) {
			ok = true
		}
	}
	if !ok {
		os.Exit(1)
	}
}

// inspect parses the file against one entity schema and prints the
// resolution report. Returns whether the file is loadable as that
// entity.
func inspect(path, entityName string, opt csvparser.Options) bool {
	ent, err := schema.Lookup(entityName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	fmt.Printf("== %s as %q\n", path, ent.Name)

	batch, skipped, err := csvparser.NewParser(ent, opt).Parse(f, path)
	if err != nil {
		fmt.Printf("   not parseable: %v\n", err)
		return false
	}

	resolved, err := ent.Resolve(batch.Columns)
	if err != nil {
		fmt.Printf("   %v\n", err)
		return false
	}

	fmt.Printf("   rows=%d skipped=%d source_columns=%d\n", len(batch.Records), skipped, len(batch.Columns))
	for _, field := range ent.Columns() {
		src, ok := resolved[field]
		switch {
		case ok && src == field:
			fmt.Printf("   %-20s <- %s\n", field, src)
		case ok:
			fmt.Printf("   %-20s <- %s (synonym)\n", field, src)
		default:
			fmt.Printf("   %-20s missing (optional)\n", field)
		}
	}

	unresolved := unresolvedColumns(batch.Columns, resolved)
	if len(unresolved) > 0 {
		fmt.Printf("   ignored source columns: %v\n", unresolved)
	}
	return true
}

// unresolvedColumns lists source columns no canonical field claimed.
func unresolvedColumns(sourceCols []string, resolved map[string]string) []string {
	claimed := make(map[string]struct{}, len(resolved))
	for _, src := range resolved {
		claimed[src] = struct{}{}
	}
	var out []string
	for _, c := range sourceCols {
		if _, ok := claimed[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
