// Package builtin contains the table transforms the pipeline can be
// configured with.
//
// Dedupe collapses duplicate rows by a key and chooses a winner according
// to a policy:
//
//   - "keep-first"    : keep the earliest occurrence (default)
//   - "keep-last"     : keep the latest occurrence
//   - "most-complete" : keep the row with the most non-nil values;
//     ties break by keep-last
//
// Keys are hashed with xxh3 over a typed, length-prefixed encoding of the key
// values, so "1" (string) and 1 (int) never collide and no separator can
// appear inside a value. With no Keys the whole row is the key.
package builtin

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/xxh3"

	"breachetl/internal/etlerr"
	"breachetl/internal/table"
)

// Dedupe removes duplicate rows.
type Dedupe struct {
	// Keys are the columns that identify a row. Empty means every column.
	Keys []string

	// Policy selects the winner among duplicates.
	Policy string
}

// Apply returns the winning rows in their original relative order.
func (d Dedupe) Apply(ctx context.Context, in *table.Table) (*table.Table, error) {
	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-first"
	}
	switch policy {
	case "keep-first", "keep-last", "most-complete":
	default:
		return nil, etlerr.New(etlerr.ErrConfig, "dedupe", fmt.Errorf("unknown policy %q", d.Policy))
	}

	keys := d.Keys
	if len(keys) == 0 {
		keys = in.Names()
	}
	cols := make([]table.Column, len(keys))
	for i, k := range keys {
		c, err := in.Column(k)
		if err != nil {
			return nil, etlerr.Column(etlerr.ErrColumnNotFound, "dedupe", k, nil)
		}
		cols[i] = c
	}
	all := in.Columns()

	type slot struct {
		index int
		score int
	}
	winners := make(map[xxh3.Uint128]slot, in.Len())

	h := xxh3.New()
	var buf [9]byte
	for i := 0; i < in.Len(); i++ {
		h.Reset()
		for _, c := range cols {
			writeKey(h, &buf, c.Values[i])
		}
		key := h.Sum128()

		prev, exists := winners[key]
		switch policy {
		case "keep-first":
			if !exists {
				winners[key] = slot{index: i}
			}
		case "keep-last":
			winners[key] = slot{index: i}
		case "most-complete":
			s := slot{index: i, score: completeness(all, i)}
			if !exists || s.score >= prev.score {
				winners[key] = s
			}
		}
	}

	idx := make([]int, 0, len(winners))
	for _, s := range winners {
		idx = append(idx, s.index)
	}
	sort.Ints(idx)

	if removed := in.Len() - len(idx); removed > 0 {
		log.Ctx(ctx).Debug().
			Str("component", "dedupe").
			Str("policy", policy).
			Int("removed", removed).
			Msg("duplicate rows removed")
	}
	return in.Take(idx), nil
}

func completeness(cols []table.Column, row int) int {
	n := 0
	for _, c := range cols {
		if c.Values[row] != nil {
			n++
		}
	}
	return n
}

// writeKey feeds one value into h as a type tag followed by a fixed-width
// payload or a length-prefixed byte string.
func writeKey(h *xxh3.Hasher, buf *[9]byte, v any) {
	switch x := v.(type) {
	case nil:
		buf[0] = 0
		_, _ = h.Write(buf[:1])
	case string:
		buf[0] = 1
		binary.LittleEndian.PutUint64(buf[1:], uint64(len(x)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(x)
	case int64:
		buf[0] = 2
		binary.LittleEndian.PutUint64(buf[1:], uint64(x))
		_, _ = h.Write(buf[:])
	case float64:
		buf[0] = 3
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(x))
		_, _ = h.Write(buf[:])
	default:
		s := fmt.Sprint(x)
		buf[0] = 4
		binary.LittleEndian.PutUint64(buf[1:], uint64(len(s)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(s)
	}
}
