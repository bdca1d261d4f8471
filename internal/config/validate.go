package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.db.mode",
// "transform[1].options.splits[0].delimiter"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers decide whether to treat warnings
// as fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateTransforms(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		u := strings.TrimSpace(s.HTTP.URL)
		if u == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  "http source requires a non-empty url",
			})
		} else if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  fmt.Sprintf("http source url %q must start with http:// or https://", u),
			})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.max_retries",
				Message:  "max_retries must not be negative",
			})
		}
	case "gcs":
		if strings.TrimSpace(s.GCS.URI) == "" && (s.GCS.Bucket == "" || s.GCS.Object == "") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.gcs",
				Message:  "gcs source requires uri or both bucket and object",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want file, http or gcs", s.Kind),
		})
	}

	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	// An empty kind defaults to csv.
	kind := strings.TrimSpace(p.Kind)
	if kind != "" && kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; only csv is supported", p.Kind),
		})
		return issues
	}

	if c := p.Options.String("comma", ""); c != "" && len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", c),
		})
	}
	if p.Options.Has("drop") && p.Options.StringSlice("drop") == nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.drop",
			Message:  "drop must be a list of column names",
		})
	}

	return issues
}

var knownTransforms = map[string]struct{}{
	"normalize": {},
	"drop":      {},
	"coerce":    {},
	"explode":   {},
	"dedupe":    {},
}

// splitOption mirrors table.Split; config stays free of pipeline imports.
type splitOption struct {
	Column    string `json:"column"`
	Delimiter string `json:"delimiter"`
}

func validateTransforms(ts []Transform) []Issue {
	var issues []Issue

	if len(ts) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "transform",
			Message:  "no transforms configured; parsed rows will be written as-is",
		})
		return issues
	}

	for i, t := range ts {
		path := fmt.Sprintf("transform[%d]", i)
		if strings.TrimSpace(t.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  "transform kind must not be empty",
			})
			continue
		}
		if _, ok := knownTransforms[t.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unknown transform kind %q", t.Kind),
			})
			continue
		}

		switch t.Kind {
		case "normalize":
		case "drop", "coerce":
			if len(t.Options.StringSlice("columns")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".options.columns",
					Message:  fmt.Sprintf("%s transform has no columns; it will be a no-op", t.Kind),
				})
			}
		case "explode":
			var splits []splitOption
			if err := t.Options.Decode("splits", &splits); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.splits",
					Message:  fmt.Sprintf("splits must be a list of {column, delimiter}: %v", err),
				})
				break
			}
			if len(splits) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".options.splits",
					Message:  "explode transform has no splits; it will be a no-op",
				})
			}
			seen := map[string]struct{}{}
			for j, s := range splits {
				sp := fmt.Sprintf("%s.options.splits[%d]", path, j)
				if strings.TrimSpace(s.Column) == "" {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Path:     sp + ".column",
						Message:  "split column must not be empty",
					})
				}
				if s.Delimiter == "" {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Path:     sp + ".delimiter",
						Message:  "split delimiter must not be empty",
					})
				}
				if _, dup := seen[s.Column]; dup {
					issues = append(issues, Issue{
						Severity: SeverityWarning,
						Path:     sp + ".column",
						Message:  fmt.Sprintf("column %q is split more than once", s.Column),
					})
				}
				seen[s.Column] = struct{}{}
			}
		case "dedupe":
			policy := t.Options.String("policy", "keep-first")
			if policy != "keep-first" && policy != "keep-last" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.policy",
					Message:  fmt.Sprintf("unknown dedupe policy %q; want keep-first or keep-last", policy),
				})
			}
		}
	}

	return issues
}

var knownStorage = map[string]struct{}{
	"postgres": {},
	"mysql":    {},
	"mssql":    {},
	"sqlite":   {},
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if s.Kind != "" {
		if _, ok := knownStorage[s.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.kind",
				Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
			})
		}
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if db.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	switch db.WriteMode() {
	case ModeReplace, ModeAppend:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.mode",
			Message:  fmt.Sprintf("unknown write mode %q; want replace or append", db.Mode),
		})
	}

	return issues
}
