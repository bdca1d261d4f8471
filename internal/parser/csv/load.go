// Package csv loads a delimited text file into an in-memory table.
//
// The first record is the header. Every later record must have exactly as
// many fields as the header. Cells are typed per column the way a dataframe
// reader does it: a column whose non-empty cells are all integers becomes
// int64, all numeric becomes float64, and anything else stays string.
// Empty cells and the usual null markers ("NA", "N/A", "null", ...) are nil.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"breachetl/internal/config"
	"breachetl/internal/etlerr"
	"breachetl/internal/parser/numeric"
	"breachetl/internal/table"
)

// DefaultDrop lists the columns removed from the breach dataset on load.
var DefaultDrop = []string{"Serial", "Sources"}

// DefaultNullValues are the cell texts read as missing.
var DefaultNullValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Options configures Load. The zero value reads comma-separated UTF-8 and
// drops DefaultDrop.
type Options struct {
	// Drop lists columns removed after reading. nil means DefaultDrop; an
	// empty non-nil slice keeps every column. Missing names are ignored.
	Drop []string

	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing whitespace from each cell.
	TrimSpace bool

	// LazyQuotes relaxes quote handling (csv.Reader.LazyQuotes).
	LazyQuotes bool

	// Encoding names the input character set; empty means UTF-8.
	Encoding string

	// NullValues overrides DefaultNullValues when non-nil.
	NullValues []string
}

// OptionsFrom maps a parser options bag onto Options.
//
//   - drop (string list)
//   - comma (string; first rune used)
//   - trim_space, lazy_quotes (bool)
//   - encoding (string)
//   - null_values (string list)
func OptionsFrom(o config.Options) Options {
	opt := Options{
		Comma:      o.Rune("comma", ','),
		TrimSpace:  o.Bool("trim_space", false),
		LazyQuotes: o.Bool("lazy_quotes", false),
		Encoding:   o.String("encoding", ""),
	}
	if o.Has("drop") {
		opt.Drop = o.StringSlice("drop")
		if opt.Drop == nil {
			opt.Drop = []string{}
		}
	}
	if o.Has("null_values") {
		opt.NullValues = o.StringSlice("null_values")
	}
	return opt
}

func (o Options) drop() []string {
	if o.Drop == nil {
		return DefaultDrop
	}
	return o.Drop
}

func (o Options) nulls() map[string]struct{} {
	vals := o.NullValues
	if vals == nil {
		vals = DefaultNullValues
	}
	m := make(map[string]struct{}, len(vals)+1)
	m[""] = struct{}{}
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// LoadFile opens path and loads it with Load.
func LoadFile(ctx context.Context, path string, opt Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, etlerr.New(etlerr.ErrIO, "csv load", err)
	}
	defer f.Close()
	return Load(ctx, f, opt)
}

// Load reads src into a table, removing the configured drop columns.
func Load(ctx context.Context, src io.Reader, opt Options) (*table.Table, error) {
	logger := log.Ctx(ctx).With().Str("component", "csv").Logger()

	in, err := decodeReader(src, opt.Encoding)
	if err != nil {
		return nil, etlerr.New(etlerr.ErrParse, "csv load", err)
	}

	r := csv.NewReader(in)
	if opt.Comma != 0 {
		r.Comma = opt.Comma
	}
	r.LazyQuotes = opt.LazyQuotes
	// FieldsPerRecord == 0 makes the reader enforce the header's width.
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, etlerr.New(etlerr.ErrParse, "csv load", errors.New("empty input: missing header row"))
	}
	if err != nil {
		return nil, readErr(err)
	}
	header = uniqueHeader(StripHeaderBOM(header))

	nulls := opt.nulls()
	cells := make([][]any, len(header))
	line := 1
	for {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readErr(err)
		}
		line++
		for i, v := range rec {
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if _, isNull := nulls[v]; isNull {
				cells[i] = append(cells[i], nil)
				continue
			}
			cells[i] = append(cells[i], v)
		}
	}

	cols := make([]table.Column, len(header))
	for i, name := range header {
		cols[i] = inferColumn(name, cells[i])
	}
	tbl, err := table.New(cols...)
	if err != nil {
		return nil, etlerr.New(etlerr.ErrParse, "csv load", err)
	}
	out := tbl.Drop(opt.drop()...)

	logger.Debug().
		Int("rows", out.Len()).
		Int("columns", out.Width()).
		Strs("dropped", opt.drop()).
		Msg("csv loaded")
	return out, nil
}

// readErr classifies csv.Reader errors: malformed input is ErrParse (with
// the line number), anything from the underlying reader is ErrIO.
func readErr(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return etlerr.New(etlerr.ErrParse, fmt.Sprintf("csv line %d", pe.Line), pe.Err)
	}
	return etlerr.New(etlerr.ErrIO, "csv read", err)
}

// uniqueHeader trims header names and renames repeats to "name.1",
// "name.2", ... so every column is addressable.
func uniqueHeader(h []string) []string {
	out := make([]string, len(h))
	used := make(map[string]bool, len(h))
	repeats := make(map[string]int, len(h))
	for i, name := range h {
		name = strings.TrimSpace(name)
		cand := name
		for used[cand] {
			repeats[name]++
			cand = fmt.Sprintf("%s.%d", name, repeats[name])
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

// inferColumn types a column from its raw cells (string or nil).
func inferColumn(name string, raw []any) table.Column {
	if raw == nil {
		raw = []any{}
	}
	allInt, allNum, present := true, true, false
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		present = true
		if _, ok := numeric.ParseInt(s); !ok {
			allInt = false
		}
		if _, ok := numeric.ParseFloat(s); !ok {
			allNum = false
			break
		}
	}
	if !present || !allNum {
		return table.Column{Name: name, Kind: table.KindString, Values: raw}
	}

	vals := make([]any, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if allInt {
			n, _ := numeric.ParseInt(s)
			vals[i] = n
		} else {
			f, _ := numeric.ParseFloat(s)
			vals[i] = f
		}
	}
	if allInt {
		return table.Column{Name: name, Kind: table.KindInt, Values: vals}
	}
	return table.Column{Name: name, Kind: table.KindFloat, Values: vals}
}
