// Package ddl defines a small, dialect-agnostic table model and a
// deterministic CREATE TABLE renderer. Backend packages map canonical
// schema entities onto TableDef with their own SQL types and wrap the
// renderer with whatever dialect guard they need.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef is one column of a table definition. Name is emitted
// verbatim; quoting is the caller's concern.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the (possibly dotted) table name and ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a
// TableDef. Columns with PrimaryKey set are collected into a trailing
// PRIMARY KEY (...) clause. When ifNotExists is true an IF NOT EXISTS
// guard is emitted; dialects without that form pass false and wrap the
// statement themselves.
func BuildCreateTableSQL(t TableDef, ifNotExists bool) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		def := name + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, name)
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	guard := ""
	if ifNotExists {
		guard = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n);", guard, fqn, strings.Join(cols, ",\n  ")), nil
}
