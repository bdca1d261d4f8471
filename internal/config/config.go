// Package config defines the canonical, serializable configuration model for
// a breach-load pipeline. Pipelines are loaded from JSON or YAML files and
// passed through the program without additional glue code.
//
// Example (trimmed):
//
//	{
//	  "job":       "breaches",
//	  "source":    { "kind": "file", "file": { "path": "data_breaches.csv" } },
//	  "parser":    { "kind": "csv", "options": { "drop": ["Serial", "Sources"] } },
//	  "transform": [
//	    { "kind": "coerce",  "options": { "columns": ["Records"] } },
//	    { "kind": "explode", "options": { "splits": [{ "column": "Method", "delimiter": "/" }] } }
//	  ],
//	  "storage":   { "kind": "postgres",
//	                 "db": { "dsn": "postgresql://postgres@localhost/breach",
//	                         "table": "breaches", "mode": "replace" } }
//	}
package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Write modes accepted by storage.db.mode.
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// Pipeline describes the full pipeline. It is the top-level object decoded
// from a pipeline file.
type Pipeline struct {
	// Job names the run for logs and metrics.
	Job string `json:"job" yaml:"job"`

	// Source describes where the raw CSV comes from.
	Source Source `json:"source" yaml:"source"`

	// Parser configures how raw bytes become a table.
	Parser Parser `json:"parser" yaml:"parser"`

	// Transform lists the ordered table transforms.
	Transform []Transform `json:"transform" yaml:"transform"`

	// Storage describes the destination table.
	Storage Storage `json:"storage" yaml:"storage"`
}

// Source identifies the data source.
type Source struct {
	// Kind selects the source implementation: "file", "http" or "gcs".
	Kind string `json:"kind" yaml:"kind"`

	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
	GCS  SourceGCS  `json:"gcs" yaml:"gcs"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL                string `json:"url" yaml:"url"`
	MaxRetries         int    `json:"max_retries" yaml:"max_retries"`
	TimeoutSeconds     int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// SourceGCS holds configuration for the "gcs" source kind. URI takes the
// form gs://bucket/object; Bucket/Object may be given separately instead.
type SourceGCS struct {
	URI    string `json:"uri" yaml:"uri"`
	Bucket string `json:"bucket" yaml:"bucket"`
	Object string `json:"object" yaml:"object"`
}

// Parser selects how to parse the raw source into a table.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   drop (string list), comma (string), trim_space (bool),
	//   lazy_quotes (bool), encoding (string)
	Options Options `json:"options" yaml:"options"`
}

// Transform defines a single table transform.
type Transform struct {
	// Kind selects the transform: "drop", "coerce", "explode", "dedupe".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the selected transform.
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the sink.
type Storage struct {
	// Kind selects the backend: "postgres", "sqlite", "mssql", "mysql".
	// When empty it is inferred from the DSN scheme.
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the destination table.
type DBConfig struct {
	// DSN is the connection string, e.g. postgresql://postgres@localhost/breach.
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the destination table name, optionally schema-qualified.
	Table string `json:"table" yaml:"table"`

	// Mode is "replace" (default) or "append".
	Mode string `json:"mode" yaml:"mode"`

	// BatchSize bounds rows per insert batch; 0 uses the backend default.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// WriteMode returns the configured mode, defaulting to replace.
func (d DBConfig) WriteMode() string {
	if d.Mode == "" {
		return ModeReplace
	}
	return d.Mode
}

// Options is a small helper to fetch typed values from free-form option maps
// decoded from JSON or YAML. It performs minimal type coercion and returns
// the provided default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key. Non-string values are
// ignored. Returns an empty map when the key is missing.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key, or nil when missing. A bare string
// is treated as a one-element list.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		case string:
			return []string{vv}
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Decode round-trips the value at key through JSON into dst. It is used for
// nested option blocks that map onto a typed struct (e.g. explode splits).
// A missing key leaves dst untouched.
func (o Options) Decode(key string, dst any) error {
	raw, ok := o[key]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("options.%s: marshal: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("options.%s: %w", key, err)
	}
	return nil
}

// UnmarshalJSON makes a missing or null options object decode to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML is the YAML counterpart of UnmarshalJSON.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	var tmp map[string]any
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
