// Static validation / linting for Plan values. Checks run over a
// decoded plan and return a list of issues (errors and warnings) the
// CLI surfaces before running anything.
package config

import (
	"fmt"
	"strings"
	"time"

	"tennisetl/internal/schema"
)

// IssueSeverity is the severity of a plan issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// plan (e.g. "entities[1].min_date").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can stand alone.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var storageKinds = map[string]struct{}{
	"postgres": {},
	"mssql":    {},
	"sqlite":   {},
	"mysql":    {},
}

// ValidatePlan statically checks a plan without mutating it. Callers
// decide whether warnings are fatal.
func ValidatePlan(p Plan) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; metrics and log lines will carry a default label",
		})
	}

	if _, ok := storageKinds[p.Storage.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q", p.Storage.Kind),
		})
	}
	if strings.TrimSpace(p.Storage.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.dsn",
			Message:  "dsn is empty; the PG_URL environment variable must be set",
		})
	}

	if len(p.Entities) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "entities",
			Message:  "at least one entity load is required",
		})
	}
	for i, e := range p.Entities {
		issues = append(issues, validateEntityLoad(i, e)...)
	}

	return issues
}

func validateEntityLoad(i int, e EntityLoad) []Issue {
	var issues []Issue
	at := func(field string) string { return fmt.Sprintf("entities[%d].%s", i, field) }

	if _, err := schema.Lookup(e.Entity); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     at("entity"),
			Message:  err.Error(),
		})
	}

	switch e.Mode {
	case "", string(schema.ModeAppend), string(schema.ModeUpsert):
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     at("mode"),
			Message:  fmt.Sprintf("mode must be %q or %q, got %q", schema.ModeAppend, schema.ModeUpsert, e.Mode),
		})
	}

	switch e.Source.Kind {
	case "file":
		if len(e.Source.Paths) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     at("source.paths"),
				Message:  "file source needs at least one path or glob",
			})
		}
	case "http":
		if len(e.Source.URLs) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     at("source.urls"),
				Message:  "http source needs at least one url",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     at("source.kind"),
			Message:  fmt.Sprintf("source kind must be \"file\" or \"http\", got %q", e.Source.Kind),
		})
	}

	if e.MinDate != "" {
		if _, err := time.Parse("2006-01-02", e.MinDate); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     at("min_date"),
				Message:  fmt.Sprintf("min_date must be YYYY-MM-DD, got %q", e.MinDate),
			})
		}
	}

	return issues
}
