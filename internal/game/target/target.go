// Package target maps symbolic change targets and bonus types onto concrete
// sheet paths.
package target

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

// Category groups targets by their place in the dependency order.
type Category int

const (
	CategoryAbility Category = iota
	CategoryMisc
	CategoryAC
	CategoryAttack
	CategoryDamage
	CategorySave
	CategorySkill
	CategoryCombat
	CategoryLate
)

var categoryNames = [...]string{"ability", "misc", "ac", "attack", "damage", "save", "skill", "combat", "late"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
	return categoryNames[c]
}

// UnresolvedTargetError reports a target that maps to no concrete path.
type UnresolvedTargetError struct {
	Target string
	Type   change.BonusType
}

func (e *UnresolvedTargetError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("unresolved target %q", e.Target)
	}
	return fmt.Sprintf("unresolved target %q for bonus type %s", e.Target, e.Type)
}

// Spec describes one symbolic target.
type Spec struct {
	Name     string
	Category Category
	// Rank is the global position of the target in the pass order.
	Rank int
	// Masks are dotted path prefixes that read as 0 while this target's
	// formulas are evaluated, so a bonus never feeds on itself.
	Masks []string

	paths func(t change.BonusType, s *sheet.Sheet) []sheet.Path
}

// Paths returns the concrete paths for bonus type t on s.
func (sp Spec) Paths(t change.BonusType, s *sheet.Sheet) []sheet.Path {
	return sp.paths(t, s)
}

// Lookup returns the spec for target, including dynamic skill and spell
// slot targets.
func Lookup(target string) (Spec, bool) {
	if sp, ok := table[target]; ok {
		return sp, true
	}
	if sp, ok := dynamic(target); ok {
		return sp, true
	}
	return Spec{}, false
}

// Resolve maps target and bonus type onto the concrete paths of s.
//
// Postcondition: returns at least one path, or an *UnresolvedTargetError.
func Resolve(target string, t change.BonusType, s *sheet.Sheet) ([]sheet.Path, error) {
	sp, ok := Lookup(target)
	if !ok {
		return nil, &UnresolvedTargetError{Target: target}
	}
	paths := sp.Paths(t, s)
	if len(paths) == 0 {
		return nil, &UnresolvedTargetError{Target: target, Type: t}
	}
	return paths, nil
}

// Ranker orders targets for change.Sort.
type Ranker struct{}

// Rank implements change.Ranker.
func (Ranker) Rank(target string) (change.Rank, bool) {
	sp, ok := Lookup(target)
	if !ok {
		return change.Rank{}, false
	}
	return change.Rank{Category: int(sp.Category), Index: sp.Rank}, true
}

// Names returns every static target name in pass order.
func Names() []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		if !strings.HasSuffix(name, "*") {
			out = append(out, name)
		}
	}
	return out
}

const (
	skillPrefix = "skill."
	subSkillSep = ".subSkills."
	spellPrefix = "spells."
)

// dynamic builds specs for "skill.<k>", "skill.<k>.subSkills.<s>" and
// "spells.<book>.spell<N>".
func dynamic(target string) (Spec, bool) {
	switch {
	case strings.HasPrefix(target, skillPrefix):
		rest := target[len(skillPrefix):]
		key, sub, hasSub := strings.Cut(rest, subSkillSep)
		if key == "" || strings.Contains(key, ".") || (hasSub && (sub == "" || strings.Contains(sub, "."))) {
			return Spec{}, false
		}
		return Spec{
			Name:     target,
			Category: CategorySkill,
			Rank:     skillRank,
			Masks:    []string{"skills." + key},
			paths: func(_ change.BonusType, s *sheet.Sheet) []sheet.Path {
				sk, ok := s.Skill(key)
				if !ok {
					return nil
				}
				if !hasSub {
					return []sheet.Path{sheet.Of(sheet.SkillChangeBonus, key)}
				}
				for _, ss := range sk.SubSkills {
					if ss == sub {
						return []sheet.Path{sheet.SubSkill(sheet.SkillChangeBonus, key, sub)}
					}
				}
				return nil
			},
		}, true

	case strings.HasPrefix(target, spellPrefix):
		book, slot, ok := strings.Cut(target[len(spellPrefix):], ".spell")
		if !ok || book == "" {
			return Spec{}, false
		}
		level, err := strconv.Atoi(slot)
		if err != nil || level < 0 || level > 9 {
			return Spec{}, false
		}
		return Spec{
			Name:     target,
			Category: CategoryLate,
			Rank:     spellRank,
			paths: func(_ change.BonusType, s *sheet.Sheet) []sheet.Path {
				if _, ok := s.Spellbook(book); !ok {
					return nil
				}
				return []sheet.Path{sheet.Slot(sheet.SpellSlotChange, book, level)}
			},
		}, true
	}
	return Spec{}, false
}
