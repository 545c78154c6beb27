// Package change models declarative bonus contributions ("changes") and the
// deterministic order in which a recompute pass applies them.
package change

import (
	"fmt"
	"strings"
)

// BonusType is the stacking category of a change.
type BonusType string

const (
	Replace      BonusType = "replace"
	Untyped      BonusType = "untyped"
	Base         BonusType = "base"
	Enhancement  BonusType = "enh"
	Dodge        BonusType = "dodge"
	Inherent     BonusType = "inherent"
	Deflection   BonusType = "deflection"
	Morale       BonusType = "morale"
	Luck         BonusType = "luck"
	Sacred       BonusType = "sacred"
	Insight      BonusType = "insight"
	Resistance   BonusType = "resist"
	Profane      BonusType = "profane"
	Trait        BonusType = "trait"
	Racial       BonusType = "racial"
	Size         BonusType = "size"
	Competence   BonusType = "competence"
	Circumstance BonusType = "circumstance"
	Alchemical   BonusType = "alchemical"
	Penalty      BonusType = "penalty"
)

// Priority lists every bonus type in application order. Its index is the
// secondary sort key of a pass.
var Priority = []BonusType{
	Replace, Untyped, Base, Enhancement, Dodge, Inherent, Deflection, Morale,
	Luck, Sacred, Insight, Resistance, Profane, Trait, Racial, Size,
	Competence, Circumstance, Alchemical, Penalty,
}

var priorityIndex = func() map[BonusType]int {
	m := make(map[BonusType]int, len(Priority))
	for i, t := range Priority {
		m[t] = i
	}
	return m
}()

// aliases accepted by ParseBonusType in addition to the canonical names.
var aliases = map[string]BonusType{
	"enhancement": Enhancement,
	"resistance":  Resistance,
	"":            Untyped,
}

// ParseBonusType maps a document string to a BonusType.
func ParseBonusType(s string) (BonusType, error) {
	key := strings.TrimSpace(s)
	if t, ok := aliases[strings.ToLower(key)]; ok {
		return t, nil
	}
	t := BonusType(key)
	if _, ok := priorityIndex[t]; !ok {
		return "", fmt.Errorf("unknown bonus type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known bonus type.
func (t BonusType) Valid() bool {
	_, ok := priorityIndex[t]
	return ok
}

// Stacks reports whether every contribution of this type is summed.
func (t BonusType) Stacks() bool {
	return t == Untyped || t == Dodge || t == Penalty
}

// Priority returns the index of t in Priority; unknown types sort last.
func (t BonusType) Priority() int {
	if i, ok := priorityIndex[t]; ok {
		return i
	}
	return len(Priority)
}

// Label is the human-readable name used in source details.
func (t BonusType) Label() string {
	switch t {
	case Enhancement:
		return "Enhancement"
	case Resistance:
		return "Resistance"
	case Untyped:
		return "Untyped"
	default:
		s := string(t)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
