package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"unicode/utf8"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------

const breachJSON = `{
  "job": "breaches",
  "source": { "kind": "file", "file": { "path": "testdata/data_breaches.csv" } },
  "parser": {
    "kind": "csv",
    "options": { "drop": ["Serial", "Sources"], "comma": ",", "trim_space": true }
  },
  "transform": [
    { "kind": "coerce", "options": { "columns": ["Records"] } },
    { "kind": "explode", "options": { "splits": [
      { "column": "Method", "delimiter": "/" },
      { "column": "Organization type", "delimiter": ", " }
    ] } }
  ],
  "storage": {
    "kind": "postgres",
    "db": {
      "dsn": "postgresql://postgres@localhost/breach",
      "table": "breaches",
      "mode": "append"
    }
  }
}`

const breachYAML = `
job: breaches
source:
  kind: file
  file:
    path: testdata/data_breaches.csv
parser:
  kind: csv
  options:
    drop: [Serial, Sources]
    comma: ","
    trim_space: true
transform:
  - kind: coerce
    options:
      columns: [Records]
  - kind: explode
    options:
      splits:
        - column: Method
          delimiter: /
        - column: Organization type
          delimiter: ", "
storage:
  kind: postgres
  db:
    dsn: postgresql://postgres@localhost/breach
    table: breaches
    mode: append
`

func checkBreachPipeline(t *testing.T, p Pipeline) {
	t.Helper()

	if p.Job != "breaches" {
		t.Fatalf("job = %q, want breaches", p.Job)
	}
	if p.Source.Kind != "file" || p.Source.File.Path != "testdata/data_breaches.csv" {
		t.Fatalf("source decoded = %#v", p.Source)
	}
	if got := p.Parser.Options.StringSlice("drop"); !reflect.DeepEqual(got, []string{"Serial", "Sources"}) {
		t.Fatalf("parser.options.drop = %#v", got)
	}
	if got := p.Parser.Options.Rune("comma", ';'); got != ',' {
		t.Fatalf("parser.options.comma = %q, want ','", got)
	}
	if !p.Parser.Options.Bool("trim_space", false) {
		t.Fatalf("parser.options.trim_space = false, want true")
	}
	if len(p.Transform) != 2 || p.Transform[0].Kind != "coerce" || p.Transform[1].Kind != "explode" {
		t.Fatalf("transform decoded = %#v", p.Transform)
	}
	if got := p.Transform[0].Options.StringSlice("columns"); !reflect.DeepEqual(got, []string{"Records"}) {
		t.Fatalf("coerce.columns = %#v", got)
	}

	var splits []splitOption
	if err := p.Transform[1].Options.Decode("splits", &splits); err != nil {
		t.Fatalf("Decode(splits): %v", err)
	}
	want := []splitOption{{"Method", "/"}, {"Organization type", ", "}}
	if !reflect.DeepEqual(splits, want) {
		t.Fatalf("splits = %#v, want %#v", splits, want)
	}

	db := p.Storage.DB
	if p.Storage.Kind != "postgres" || db.Table != "breaches" || db.WriteMode() != ModeAppend {
		t.Fatalf("storage decoded = %#v", p.Storage)
	}
}

func TestDecode_JSON(t *testing.T) {
	t.Parallel()

	p, err := Decode([]byte(breachJSON), ".json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkBreachPipeline(t, p)
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	p, err := Decode([]byte(breachYAML), ".yml")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkBreachPipeline(t, p)
}

func TestLoad_ByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jp := filepath.Join(dir, "pipeline.json")
	yp := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(jp, []byte(breachJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yp, []byte(breachYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{jp, yp} {
		p, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", path, err)
		}
		checkBreachPipeline(t, p)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("Load(missing) error = nil, want non-nil")
	}
}

func TestDecode_FillsNilOptions(t *testing.T) {
	t.Parallel()

	p, err := Decode([]byte(`{"job":"j","transform":[{"kind":"dedupe"}]}`), ".json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Parser.Options == nil || p.Transform[0].Options == nil {
		t.Fatalf("options left nil: parser=%#v transform=%#v", p.Parser.Options, p.Transform[0].Options)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Parallel()

	p := Pipeline{Storage: Storage{DB: DBConfig{DSN: "from-file", Table: "t", Mode: "replace"}}}
	env := map[string]string{
		EnvDSN:   "postgresql://env@localhost/breach",
		EnvTable: "  ",
	}
	ApplyEnv(&p, func(k string) string { return env[k] })

	if p.Storage.DB.DSN != "postgresql://env@localhost/breach" {
		t.Fatalf("dsn = %q, want env override", p.Storage.DB.DSN)
	}
	if p.Storage.DB.Table != "t" {
		t.Fatalf("blank env must not override table; got %q", p.Storage.DB.Table)
	}
	if p.Storage.DB.Mode != "replace" {
		t.Fatalf("mode = %q, want replace", p.Storage.DB.Mode)
	}
}

func TestDBConfig_WriteModeDefault(t *testing.T) {
	t.Parallel()

	if got := (DBConfig{}).WriteMode(); got != ModeReplace {
		t.Fatalf("WriteMode() = %q, want %q", got, ModeReplace)
	}
}

// -----------------------------------------------------------------------------
// Options helper tests
// -----------------------------------------------------------------------------

func TestOptions_String_Bool_Int_Rune_DefaultsAndCoercion(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":  "hello",
		"b":  true,
		"i":  float64(42), // encoding/json decodes numbers as float64
		"iy": 7,           // yaml.v3 decodes them as int
		"r":  ",",
	}

	if got := o.String("s", "def"); got != "hello" {
		t.Fatalf("String(s) = %q, want hello", got)
	}
	if got := o.String("missing", "def"); got != "def" {
		t.Fatalf("String(missing) = %q, want def", got)
	}
	if got := o.Bool("b", false); got != true {
		t.Fatalf("Bool(b) = %v, want true", got)
	}
	if got := o.Bool("missing", true); got != true {
		t.Fatalf("Bool(missing) = %v, want true", got)
	}
	if got := o.Int("i", 0); got != 42 {
		t.Fatalf("Int(i) = %d, want 42", got)
	}
	if got := o.Int("iy", 0); got != 7 {
		t.Fatalf("Int(iy) = %d, want 7", got)
	}
	if got := o.Int("missing", 7); got != 7 {
		t.Fatalf("Int(missing) = %d, want 7", got)
	}
	if got := o.Rune("r", ';'); got != ',' {
		t.Fatalf("Rune(r) = %q, want ','", got)
	}
	if got := o.Rune("missing", 'X'); got != 'X' {
		t.Fatalf("Rune(missing) = %q, want 'X'", got)
	}

	o["r2"] = "ž"
	r := o.Rune("r2", 'x')
	if !utf8.ValidRune(r) || string(r) != "ž" {
		t.Fatalf("Rune(r2) = %#U, want ž", r)
	}
}

func TestOptions_StringMap_StringSlice_Any(t *testing.T) {
	t.Parallel()

	o := Options{
		"m":      map[string]any{"A": "a", "B": "b", "X": 1},
		"s1":     []any{"alpha", "beta", 3},
		"s2":     []string{"gamma", "delta"},
		"s3":     "solo",
		"nested": map[string]any{"k": "v"},
	}

	if sm := o.StringMap("m"); !reflect.DeepEqual(sm, map[string]string{"A": "a", "B": "b"}) {
		t.Fatalf("StringMap(m) = %#v, want {A:a B:b}", sm)
	}
	if sm := o.StringMap("missing"); sm == nil || len(sm) != 0 {
		t.Fatalf("StringMap(missing) = %#v, want empty map", sm)
	}
	if ss := o.StringSlice("s1"); !reflect.DeepEqual(ss, []string{"alpha", "beta"}) {
		t.Fatalf("StringSlice(s1) = %#v, want [alpha beta]", ss)
	}
	if ss := o.StringSlice("s2"); !reflect.DeepEqual(ss, []string{"gamma", "delta"}) {
		t.Fatalf("StringSlice(s2) = %#v, want [gamma delta]", ss)
	}
	if ss := o.StringSlice("s3"); !reflect.DeepEqual(ss, []string{"solo"}) {
		t.Fatalf("StringSlice(s3) = %#v, want [solo]", ss)
	}
	if got := o.StringSlice("missing"); got != nil {
		t.Fatalf("StringSlice(missing) = %#v, want nil", got)
	}
	if m, ok := o.Any("nested").(map[string]any); !ok || m["k"] != "v" {
		t.Fatalf("Any(nested) = %#v, want map with k=v", o.Any("nested"))
	}
	if o.Any("missing") != nil {
		t.Fatalf("Any(missing) should be nil when key absent")
	}
}

func TestOptions_Decode(t *testing.T) {
	t.Parallel()

	o := Options{"splits": []any{map[string]any{"column": "Method", "delimiter": "/"}}, "bad": "x"}

	var got []splitOption
	if err := o.Decode("splits", &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, []splitOption{{"Method", "/"}}) {
		t.Fatalf("Decode(splits) = %#v", got)
	}

	var none []splitOption
	if err := o.Decode("missing", &none); err != nil || none != nil {
		t.Fatalf("Decode(missing) = %#v, %v; want nil, nil", none, err)
	}
	if err := o.Decode("bad", &none); err == nil {
		t.Fatalf("Decode(bad) error = nil, want non-nil")
	}
}

func TestOptions_UnmarshalJSON_NullYieldsEmptyMap(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Opts Options `json:"options"`
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"options": null}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Opts == nil || len(w.Opts) != 0 {
		t.Fatalf("Opts after null unmarshal = %#v, want non-nil empty map", w.Opts)
	}
}

func TestOptions_UnmarshalJSON_ObjectDecodesAsMap(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Opts Options `json:"options"`
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"options": {"a":"x","b":true,"n": 3}}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Opts.String("a", "") != "x" || !w.Opts.Bool("b", false) || w.Opts.Int("n", 0) != 3 {
		t.Fatalf("Opts = %#v", w.Opts)
	}
}
