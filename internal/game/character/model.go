// Package character defines the raw character document the recompute engine
// reads. Only the engine derives values from it; callers edit raw fields.
package character

import (
	"slices"
	"time"

	"github.com/cory-johannsen/d20sheet/internal/game/item"
)

// Kind separates player characters from NPCs for health configuration.
type Kind string

const (
	KindCharacter Kind = "character"
	KindNPC       Kind = "npc"
)

// Ability holds the raw inputs of one ability score.
type Ability struct {
	Value           int     `yaml:"value" json:"value"`
	Damage          int     `yaml:"damage,omitempty" json:"damage,omitempty"`
	Drain           int     `yaml:"drain,omitempty" json:"drain,omitempty"`
	UserPenalty     int     `yaml:"user_penalty,omitempty" json:"user_penalty,omitempty"`
	CarryBonus      int     `yaml:"carry_bonus,omitempty" json:"carry_bonus,omitempty"`
	CarryMultiplier float64 `yaml:"carry_multiplier,omitempty" json:"carry_multiplier,omitempty"`
}

// Skill holds the raw inputs of one skill.
type Skill struct {
	Rank    float64 `yaml:"rank,omitempty" json:"rank,omitempty"`
	Ability string  `yaml:"ability,omitempty" json:"ability,omitempty"`
	ACP     *bool   `yaml:"acp,omitempty" json:"acp,omitempty"`
	// ClassSkill forces the class-skill flag regardless of held classes.
	ClassSkill *bool               `yaml:"class_skill,omitempty" json:"class_skill,omitempty"`
	SubSkills  map[string]SubSkill `yaml:"sub_skills,omitempty" json:"sub_skills,omitempty"`
}

// SubSkill is a specialization of a skill such as Craft (alchemy).
type SubSkill struct {
	Name    string  `yaml:"name,omitempty" json:"name,omitempty"`
	Rank    float64 `yaml:"rank,omitempty" json:"rank,omitempty"`
	Ability string  `yaml:"ability,omitempty" json:"ability,omitempty"`
}

// Speed is one movement mode.
type Speed struct {
	Base            float64 `yaml:"base" json:"base"`
	Maneuverability string  `yaml:"maneuverability,omitempty" json:"maneuverability,omitempty"`
}

// Pool is a tracked resource such as hit points.
type Pool struct {
	Base  float64 `yaml:"base,omitempty" json:"base,omitempty"`
	Value float64 `yaml:"value,omitempty" json:"value,omitempty"`
	// Max is the last persisted maximum.
	Max float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Currency counts coins by denomination.
type Currency struct {
	PP int `yaml:"pp,omitempty" json:"pp,omitempty"`
	GP int `yaml:"gp,omitempty" json:"gp,omitempty"`
	SP int `yaml:"sp,omitempty" json:"sp,omitempty"`
	CP int `yaml:"cp,omitempty" json:"cp,omitempty"`
}

// Coins returns the total number of coins carried.
func (c Currency) Coins() int { return c.PP + c.GP + c.SP + c.CP }

// Spellbook is one spellcasting source.
type Spellbook struct {
	Kind    string `yaml:"kind" json:"kind"`       // arcane, divine, psionic, card
	Ability string `yaml:"ability" json:"ability"` // casting ability
	// Class is the class id whose levels set the caster level; "_hd" uses
	// total hit dice.
	Class           string `yaml:"class,omitempty" json:"class,omitempty"`
	CLFormula       string `yaml:"cl_formula,omitempty" json:"cl_formula,omitempty"`
	AutoSpellLevels bool   `yaml:"auto_spell_levels,omitempty" json:"auto_spell_levels,omitempty"`
	// Slots holds the base slots per spell level; a nil entry disables the
	// level.
	Slots map[int]*float64 `yaml:"slots,omitempty" json:"slots,omitempty"`
}

// Character is a raw character document and the items it owns.
type Character struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Kind     Kind   `yaml:"kind,omitempty" json:"kind,omitempty"`
	MasterID string `yaml:"master,omitempty" json:"master,omitempty"`

	Abilities map[string]Ability `yaml:"abilities" json:"abilities"`
	Size      string             `yaml:"size,omitempty" json:"size,omitempty"`
	Quadruped bool               `yaml:"quadruped,omitempty" json:"quadruped,omitempty"`
	Skills    map[string]Skill   `yaml:"skills,omitempty" json:"skills,omitempty"`
	Speeds    map[string]Speed   `yaml:"speeds,omitempty" json:"speeds,omitempty"`

	HP     Pool `yaml:"hp,omitempty" json:"hp,omitempty"`
	Wounds Pool `yaml:"wounds,omitempty" json:"wounds,omitempty"`
	Vigor  Pool `yaml:"vigor,omitempty" json:"vigor,omitempty"`

	NaturalAC   int                  `yaml:"natural_ac,omitempty" json:"natural_ac,omitempty"`
	EnergyDrain int                  `yaml:"energy_drain,omitempty" json:"energy_drain,omitempty"`
	Conditions  []string             `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Currency    Currency             `yaml:"currency,omitempty" json:"currency,omitempty"`
	Spellbooks  map[string]Spellbook `yaml:"spellbooks,omitempty" json:"spellbooks,omitempty"`
	SRFormula   string               `yaml:"sr_formula,omitempty" json:"sr_formula,omitempty"`

	// Derived holds the sheet values persisted by the last recompute.
	Derived map[string]float64 `yaml:"derived,omitempty" json:"derived,omitempty"`

	Items []item.Item `yaml:"-" json:"-"`

	UpdatedAt time.Time `yaml:"-" json:"-"`
}

// HasCondition reports whether condition id is set on the document.
func (c *Character) HasCondition(id string) bool {
	return slices.Contains(c.Conditions, id)
}

// Item returns the item with id.
func (c *Character) Item(id string) (item.Item, bool) {
	for _, it := range c.Items {
		if it.Base().ID == id {
			return it, true
		}
	}
	return nil, false
}

// ItemsOf returns the items of kind in document order.
func (c *Character) ItemsOf(kind item.Kind) []item.Item {
	var out []item.Item
	for _, it := range c.Items {
		if it.Base().Type == kind {
			out = append(out, it)
		}
	}
	return out
}

// Classes returns the class items in document order.
func (c *Character) Classes() []*item.Class {
	var out []*item.Class
	for _, it := range c.Items {
		if cl, ok := it.(*item.Class); ok {
			out = append(out, cl)
		}
	}
	return out
}

// Race returns the race item, if any.
func (c *Character) Race() (*item.Race, bool) {
	for _, it := range c.Items {
		if r, ok := it.(*item.Race); ok {
			return r, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the document fields. Items are shared.
func (c *Character) Clone() *Character {
	cp := *c
	cp.Abilities = cloneMap(c.Abilities)
	cp.Skills = cloneMap(c.Skills)
	cp.Speeds = cloneMap(c.Speeds)
	cp.Spellbooks = cloneMap(c.Spellbooks)
	cp.Derived = cloneMap(c.Derived)
	cp.Conditions = slices.Clone(c.Conditions)
	cp.Items = slices.Clone(c.Items)
	return &cp
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
