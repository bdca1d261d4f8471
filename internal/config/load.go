package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the pipeline file.
const (
	EnvDSN   = "ETL_DB_DSN"
	EnvTable = "ETL_DB_TABLE"
	EnvMode  = "ETL_DB_MODE"
)

// Load reads a pipeline file. Files ending in .yaml or .yml are decoded as
// YAML; everything else as JSON.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(raw, filepath.Ext(path))
}

// Decode parses raw pipeline bytes. ext selects the format (".yaml", ".yml"
// or anything else for JSON).
func Decode(raw []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return Pipeline{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode json config: %w", err)
		}
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	for i := range p.Transform {
		if p.Transform[i].Options == nil {
			p.Transform[i].Options = Options{}
		}
	}
	return p, nil
}

// ApplyEnv overrides storage settings from the environment. getenv is
// injected so tests stay hermetic; pass os.Getenv in production.
func ApplyEnv(p *Pipeline, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvDSN)); v != "" {
		p.Storage.DB.DSN = v
	}
	if v := strings.TrimSpace(getenv(EnvTable)); v != "" {
		p.Storage.DB.Table = v
	}
	if v := strings.TrimSpace(getenv(EnvMode)); v != "" {
		p.Storage.DB.Mode = v
	}
}
