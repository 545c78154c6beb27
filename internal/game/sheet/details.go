package sheet

import "slices"

// SourceDetail is one line of the provenance breakdown behind a value.
type SourceDetail struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Note  string  `json:"note,omitempty"`
}

// Details maps dotted paths to their provenance lines.
type Details map[string][]SourceDetail

// Add appends d under path.
func (d Details) Add(path string, sd SourceDetail) {
	d[path] = append(d[path], sd)
}

// Drop removes every line under path named name.
func (d Details) Drop(path, name string) {
	d[path] = slices.DeleteFunc(d[path], func(sd SourceDetail) bool { return sd.Name == name })
	if len(d[path]) == 0 {
		delete(d, path)
	}
}

// Total sums the values recorded for path.
func (d Details) Total(path string) float64 {
	var t float64
	for _, sd := range d[path] {
		t += sd.Value
	}
	return t
}
