package condition

import "sort"

// ActiveSet tracks the conditions in force for one pass. It is not safe for
// concurrent use; the caller must serialise access.
type ActiveSet struct {
	conditions map[string]*ConditionDef
	unknown    []string
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{conditions: make(map[string]*ConditionDef)}
}

// Resolve builds the active set for ids against reg. Unknown ids are kept
// for reporting; superseded conditions are removed.
func Resolve(reg *Registry, ids []string) *ActiveSet {
	s := NewActiveSet()
	for _, id := range ids {
		def, ok := reg.Get(id)
		if !ok {
			s.unknown = append(s.unknown, id)
			continue
		}
		s.Apply(def)
	}
	for _, def := range s.conditions {
		for _, sup := range def.Supersedes {
			delete(s.conditions, sup)
		}
	}
	sort.Strings(s.unknown)
	return s
}

// Apply adds def to the set.
//
// Precondition: def must not be nil.
// Postcondition: Has(def.ID) is true.
func (s *ActiveSet) Apply(def *ConditionDef) {
	if def == nil {
		panic("ActiveSet.Apply: precondition violated: def must not be nil")
	}
	s.conditions[def.ID] = def
}

// Has reports whether condition id is active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.conditions[id]
	return ok
}

// Len returns the number of active conditions.
func (s *ActiveSet) Len() int { return len(s.conditions) }

// All returns the active definitions sorted by ID.
func (s *ActiveSet) All() []*ConditionDef {
	out := make([]*ConditionDef, 0, len(s.conditions))
	for _, d := range s.conditions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unknown returns the ids passed to Resolve that had no definition.
func (s *ActiveSet) Unknown() []string { return s.unknown }
