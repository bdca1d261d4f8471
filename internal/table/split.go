package table

// Split names a column to explode and the delimiter to split its values on.
type Split struct {
	Column    string `json:"column" yaml:"column"`
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

// SplitMap is an ordered column -> delimiter mapping. Order matters: splits
// are applied one after another, each on the previous result.
type SplitMap []Split

// Columns returns the split column names in order.
func (m SplitMap) Columns() []string {
	out := make([]string, len(m))
	for i, s := range m {
		out[i] = s.Column
	}
	return out
}
