package sheet

import (
	"maps"
	"slices"
	"strings"
)

// Abilities lists the six ability keys in pass order.
var Abilities = []string{"str", "dex", "con", "int", "wis", "cha"}

// Saves lists the saving throw keys.
var Saves = []string{"fort", "ref", "will"}

// Speeds lists the movement modes.
var Speeds = []string{"land", "climb", "swim", "burrow", "fly"}

// Skill describes one skill present on the character.
type Skill struct {
	Key       string
	Ability   string
	ACP       bool
	SubSkills []string
}

// Spellbook describes one spellbook present on the character.
type Spellbook struct {
	Key     string // primary, secondary, tertiary, spelllike
	Kind    string // arcane, divine, psionic, card
	Ability string
}

// Sheet is the working snapshot of a recompute pass. It is not safe for
// concurrent use; a pass owns it exclusively.
type Sheet struct {
	values     map[Path]float64
	byName     map[string]Path
	skills     []Skill
	skillIndex map[string]int
	spellbooks []Spellbook
}

// New returns an empty Sheet.
func New() *Sheet {
	return &Sheet{
		values:     make(map[Path]float64),
		byName:     make(map[string]Path),
		skillIndex: make(map[string]int),
	}
}

// Get returns the value at p, or 0 when unset.
func (s *Sheet) Get(p Path) float64 { return s.values[p] }

// Has reports whether p has been set.
func (s *Sheet) Has(p Path) bool {
	_, ok := s.values[p]
	return ok
}

// Set stores v at p.
func (s *Sheet) Set(p Path, v float64) {
	if _, ok := s.values[p]; !ok {
		s.byName[p.String()] = p
	}
	s.values[p] = v
}

// Add adds d to the value at p.
func (s *Sheet) Add(p Path, d float64) { s.Set(p, s.values[p]+d) }

// Delete removes p.
func (s *Sheet) Delete(p Path) {
	if _, ok := s.values[p]; ok {
		delete(s.byName, p.String())
		delete(s.values, p)
	}
}

// Lookup resolves a dotted formula path. It satisfies formula.Scope.
func (s *Sheet) Lookup(name string) (float64, bool) {
	p, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	return s.values[p], true
}

// PathOf returns the Path behind a dotted name previously set on s.
func (s *Sheet) PathOf(name string) (Path, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Flatten returns every value keyed by dotted path.
func (s *Sheet) Flatten() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for p, v := range s.values {
		out[p.String()] = v
	}
	return out
}

// Names returns all dotted paths in lexical order.
func (s *Sheet) Names() []string {
	return slices.Sorted(maps.Keys(s.byName))
}

// Prefixed returns the dotted paths under prefix, in lexical order.
func (s *Sheet) Prefixed(prefix string) []string {
	var out []string
	for name := range s.byName {
		if name == prefix || strings.HasPrefix(name, prefix+".") {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// DeclareSkill records a skill present on the character. Redeclaring a key
// replaces it.
func (s *Sheet) DeclareSkill(sk Skill) {
	if i, ok := s.skillIndex[sk.Key]; ok {
		s.skills[i] = sk
		return
	}
	s.skillIndex[sk.Key] = len(s.skills)
	s.skills = append(s.skills, sk)
}

// Skills returns the declared skills in declaration order.
func (s *Sheet) Skills() []Skill { return s.skills }

// Skill returns the declared skill for key.
func (s *Sheet) Skill(key string) (Skill, bool) {
	i, ok := s.skillIndex[key]
	if !ok {
		return Skill{}, false
	}
	return s.skills[i], true
}

// DeclareSpellbook records a spellbook present on the character.
func (s *Sheet) DeclareSpellbook(b Spellbook) {
	for i := range s.spellbooks {
		if s.spellbooks[i].Key == b.Key {
			s.spellbooks[i] = b
			return
		}
	}
	s.spellbooks = append(s.spellbooks, b)
}

// Spellbooks returns the declared spellbooks.
func (s *Sheet) Spellbooks() []Spellbook { return s.spellbooks }

// Spellbook returns the declared spellbook for key.
func (s *Sheet) Spellbook(key string) (Spellbook, bool) {
	for _, b := range s.spellbooks {
		if b.Key == key {
			return b, true
		}
	}
	return Spellbook{}, false
}

// Clone returns an independent copy of s.
func (s *Sheet) Clone() *Sheet {
	c := &Sheet{
		values:     maps.Clone(s.values),
		byName:     maps.Clone(s.byName),
		skills:     slices.Clone(s.skills),
		skillIndex: maps.Clone(s.skillIndex),
		spellbooks: slices.Clone(s.spellbooks),
	}
	return c
}
