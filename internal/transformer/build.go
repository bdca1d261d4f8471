package transformer

import (
	"fmt"

	"breachetl/internal/config"
	"breachetl/internal/etlerr"
	"breachetl/internal/table"
	"breachetl/internal/transformer/builtin"
)

// Build maps transform configs to builtins, preserving order.
//
//	normalize                       builtin.Normalize
//	drop     {columns}              builtin.Drop
//	coerce   {columns}              builtin.Coerce
//	explode  {splits}               builtin.Explode
//	dedupe   {keys, policy}         builtin.Dedupe
func Build(ts []config.Transform) (Chain, error) {
	chain := make(Chain, 0, len(ts))
	for i, t := range ts {
		op := fmt.Sprintf("transform[%d]", i)
		switch t.Kind {
		case "normalize":
			chain = append(chain, builtin.Normalize{Columns: t.Options.StringSlice("columns")})
		case "drop":
			chain = append(chain, builtin.Drop{Columns: t.Options.StringSlice("columns")})
		case "coerce":
			chain = append(chain, builtin.Coerce{Columns: t.Options.StringSlice("columns")})
		case "explode":
			var splits table.SplitMap
			if err := t.Options.Decode("splits", &splits); err != nil {
				return nil, etlerr.New(etlerr.ErrConfig, op, err)
			}
			chain = append(chain, builtin.Explode{Splits: splits})
		case "dedupe":
			chain = append(chain, builtin.Dedupe{
				Keys:   t.Options.StringSlice("keys"),
				Policy: t.Options.String("policy", ""),
			})
		default:
			return nil, etlerr.New(etlerr.ErrConfig, op, fmt.Errorf("unknown transform kind %q", t.Kind))
		}
	}
	return chain, nil
}
