package condition

import "github.com/cory-johannsen/d20sheet/internal/game/change"

// Flags returns the union of flags raised by the active conditions.
func Flags(s *ActiveSet) change.Flags {
	fs := change.Flags{}
	for _, def := range s.conditions {
		for _, f := range def.Flags {
			fs.Set(f)
		}
	}
	return fs
}

// Records returns one unevaluated record per change line of every active
// condition, in condition ID order. Specs with an unknown bonus type are
// returned in bad.
func Records(s *ActiveSet) (records []change.Record, bad []change.Spec) {
	for _, def := range s.All() {
		for _, sp := range def.Changes {
			bt, err := change.ParseBonusType(sp.Type)
			if err != nil {
				bad = append(bad, sp)
				continue
			}
			records = append(records, change.Record{
				Formula: sp.Formula,
				Target:  sp.Target,
				Type:    bt,
				Source:  change.Source{Name: def.Name, Type: "condition", Subtype: def.ID},
			})
		}
	}
	return records, bad
}

// Polymorphed reports whether a shape-changing condition is active.
func Polymorphed(s *ActiveSet) bool {
	return s.Has("wildshaped") || s.Has("polymorphed")
}
