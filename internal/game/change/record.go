package change

import "fmt"

// Source identifies where a change came from, for provenance display.
type Source struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`       // item kind, "size", "condition", ...
	Subtype string `json:"subtype" yaml:"subtype"` // feat type, buff type, ...
	ItemID  string `json:"item_id,omitempty" yaml:"item_id,omitempty"`
}

// Record is one declarative bonus contribution for a single pass.
//
// Invariant: Formula, Target, Type and Source never change after extraction;
// Value is set once when the formula is evaluated.
type Record struct {
	Formula string
	Target  string
	Type    BonusType
	Value   float64
	Source  Source
}

// String renders the record for logs.
func (r Record) String() string {
	return fmt.Sprintf("%s %s %q (%s) from %s", r.Target, r.Type, r.Formula, formatValue(r.Value), r.Source.Name)
}

// WithValue returns a copy of r carrying v.
func (r Record) WithValue(v float64) Record {
	r.Value = v
	return r
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%+d", int64(v))
	}
	return fmt.Sprintf("%+g", v)
}
