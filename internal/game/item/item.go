// Package item models the documents a character owns. The variant set is
// closed: every document decodes into exactly one of the types below.
package item

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
)

// Kind is the document type tag.
type Kind string

// Kind constants for Common.Type.
const (
	KindWeapon    Kind = "weapon"
	KindEquipment Kind = "equipment"
	KindBuff      Kind = "buff"
	KindAura      Kind = "aura"
	KindFeat      Kind = "feat"
	KindClass     Kind = "class"
	KindRace      Kind = "race"
	KindSpell     Kind = "spell"
	KindLoot      Kind = "loot"
)

// Common holds the fields every item carries.
type Common struct {
	ID             string        `yaml:"id" json:"id"`
	Name           string        `yaml:"name" json:"name"`
	Type           Kind          `yaml:"type" json:"type"`
	Changes        []change.Spec `yaml:"changes,omitempty" json:"changes,omitempty"`
	ChangeFlags    []change.Flag `yaml:"change_flags,omitempty" json:"change_flags,omitempty"`
	ConditionFlags []string      `yaml:"condition_flags,omitempty" json:"condition_flags,omitempty"`
	Weight         float64       `yaml:"weight,omitempty" json:"weight,omitempty"`
	Quantity       int           `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Carried        bool          `yaml:"carried,omitempty" json:"carried,omitempty"`
}

// Base returns c.
func (c *Common) Base() *Common { return c }

// CarriedWeight is weight times quantity for carried items. A zero quantity
// counts as one.
func (c *Common) CarriedWeight() float64 {
	if !c.Carried {
		return 0
	}
	q := c.Quantity
	if q == 0 {
		q = 1
	}
	return c.Weight * float64(q)
}

// Item is implemented by every variant.
type Item interface {
	Base() *Common
	// Contributes reports whether the item's changes apply this pass.
	Contributes() bool
	// FormulaValues are exposed to the item's formulas under "item.".
	FormulaValues() map[string]float64
}

// Weapon is a wielded weapon.
type Weapon struct {
	Common      `yaml:",inline"`
	Equipped    bool `yaml:"equipped" json:"equipped"`
	Melded      bool `yaml:"melded,omitempty" json:"melded,omitempty"`
	Enhancement int  `yaml:"enh,omitempty" json:"enh,omitempty"`
	Masterwork  bool `yaml:"masterwork,omitempty" json:"masterwork,omitempty"`
}

func (w *Weapon) Contributes() bool { return w.Equipped && !w.Melded }

func (w *Weapon) FormulaValues() map[string]float64 {
	return map[string]float64{"enh": float64(w.Enhancement)}
}

// Armor weight categories.
const (
	ArmorLight  = "light"
	ArmorMedium = "medium"
	ArmorHeavy  = "heavy"
)

// Armor is the protective block of an equipment item.
type Armor struct {
	Value  int    `yaml:"value" json:"value"`
	Enh    int    `yaml:"enh,omitempty" json:"enh,omitempty"`
	ACP    int    `yaml:"acp,omitempty" json:"acp,omitempty"`
	MaxDex *int   `yaml:"max_dex,omitempty" json:"max_dex,omitempty"`
	Weight string `yaml:"weight_class,omitempty" json:"weight_class,omitempty"`
}

// Equipment is worn gear: armor, shields and wondrous items.
type Equipment struct {
	Common        `yaml:",inline"`
	Equipped      bool   `yaml:"equipped" json:"equipped"`
	Melded        bool   `yaml:"melded,omitempty" json:"melded,omitempty"`
	EquipmentType string `yaml:"equipment_type,omitempty" json:"equipment_type,omitempty"` // armor, shield, misc
	Slot          string `yaml:"slot,omitempty" json:"slot,omitempty"`
	Armor         Armor  `yaml:"armor,omitempty" json:"armor,omitempty"`
	Masterwork    bool   `yaml:"masterwork,omitempty" json:"masterwork,omitempty"`
}

func (e *Equipment) Contributes() bool { return e.Equipped && !e.Melded }

func (e *Equipment) FormulaValues() map[string]float64 {
	return map[string]float64{
		"armor.value": float64(e.Armor.Value),
		"armor.enh":   float64(e.Armor.Enh),
	}
}

// IsShield reports whether the item occupies the shield slot.
func (e *Equipment) IsShield() bool { return e.EquipmentType == "shield" }

// ArmorCheckPenalty is |acp| reduced by one for masterwork, never negative.
func (e *Equipment) ArmorCheckPenalty() int {
	acp := e.Armor.ACP
	if acp < 0 {
		acp = -acp
	}
	if e.Masterwork && acp > 0 {
		acp--
	}
	return acp
}

// Buff is a temporary effect that can be toggled on.
type Buff struct {
	Common       `yaml:",inline"`
	Active       bool   `yaml:"active" json:"active"`
	Level        int    `yaml:"level,omitempty" json:"level,omitempty"`
	BuffType     string `yaml:"buff_type,omitempty" json:"buff_type,omitempty"`
	SizeOverride string `yaml:"size_override,omitempty" json:"size_override,omitempty"`
}

func (b *Buff) Contributes() bool { return b.Active }

func (b *Buff) FormulaValues() map[string]float64 {
	return map[string]float64{"level": float64(b.Level)}
}

// Aura is a buff radiated by another creature.
type Aura struct {
	Common `yaml:",inline"`
	Active bool `yaml:"active" json:"active"`
	Level  int  `yaml:"level,omitempty" json:"level,omitempty"`
}

func (a *Aura) Contributes() bool { return a.Active }

func (a *Aura) FormulaValues() map[string]float64 {
	return map[string]float64{"level": float64(a.Level)}
}

// GrantedBy marks a feat created automatically for a class, race or
// template feature.
type GrantedBy struct {
	Source  string `yaml:"source" json:"source"`   // class or race id
	Feature string `yaml:"feature" json:"feature"` // feature id
}

// Feat is an always-on feat or special ability.
type Feat struct {
	Common    `yaml:",inline"`
	FeatType  string     `yaml:"feat_type,omitempty" json:"feat_type,omitempty"`
	GrantedBy *GrantedBy `yaml:"granted_by,omitempty" json:"granted_by,omitempty"`
}

func (f *Feat) Contributes() bool { return true }

func (f *Feat) FormulaValues() map[string]float64 { return nil }

// Class is a class held by the character. ClassID references a ruleset
// template; the embedded Progression overrides it field by field.
type Class struct {
	Common              `yaml:",inline"`
	ClassID             string  `yaml:"class" json:"class"`
	Level               int     `yaml:"level" json:"level"`
	HP                  float64 `yaml:"hp,omitempty" json:"hp,omitempty"`
	FavoredClassHP      float64 `yaml:"fc_hp,omitempty" json:"fc_hp,omitempty"`
	ruleset.Progression `yaml:",inline"`
}

func (c *Class) Contributes() bool { return true }

func (c *Class) FormulaValues() map[string]float64 {
	return map[string]float64{"level": float64(c.Level)}
}

// Race is the character's race.
type Race struct {
	Common          `yaml:",inline"`
	RaceID          string `yaml:"race" json:"race"`
	Size            string `yaml:"size,omitempty" json:"size,omitempty"`
	LevelAdjustment int    `yaml:"level_adjustment,omitempty" json:"level_adjustment,omitempty"`
}

func (r *Race) Contributes() bool { return true }

func (r *Race) FormulaValues() map[string]float64 { return nil }

// Spell is a prepared or known spell. Spells never contribute changes.
type Spell struct {
	Common `yaml:",inline"`
	Level  int    `yaml:"level" json:"level"`
	Book   string `yaml:"spellbook,omitempty" json:"spellbook,omitempty"`
}

func (s *Spell) Contributes() bool { return false }

func (s *Spell) FormulaValues() map[string]float64 {
	return map[string]float64{"level": float64(s.Level)}
}

// Loot is carried treasure. Loot never contributes changes.
type Loot struct {
	Common `yaml:",inline"`
}

func (l *Loot) Contributes() bool { return false }

func (l *Loot) FormulaValues() map[string]float64 { return nil }

// New returns an empty variant for kind.
func New(kind Kind) (Item, error) {
	switch kind {
	case KindWeapon:
		return &Weapon{Common: Common{Type: kind}}, nil
	case KindEquipment:
		return &Equipment{Common: Common{Type: kind}}, nil
	case KindBuff:
		return &Buff{Common: Common{Type: kind}}, nil
	case KindAura:
		return &Aura{Common: Common{Type: kind}}, nil
	case KindFeat:
		return &Feat{Common: Common{Type: kind}}, nil
	case KindClass:
		return &Class{Common: Common{Type: kind}}, nil
	case KindRace:
		return &Race{Common: Common{Type: kind}}, nil
	case KindSpell:
		return &Spell{Common: Common{Type: kind}}, nil
	case KindLoot:
		return &Loot{Common: Common{Type: kind}}, nil
	}
	return nil, fmt.Errorf("unknown item type %q", kind)
}

// Validate checks that it satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func Validate(it Item) error {
	c := it.Base()
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if c.Quantity < 0 {
		errs = append(errs, errors.New("Quantity must be >= 0"))
	}
	if c.Weight < 0 {
		errs = append(errs, errors.New("Weight must be >= 0"))
	}
	switch v := it.(type) {
	case *Class:
		if v.Level < 0 {
			errs = append(errs, errors.New("Level must be >= 0"))
		}
	case *Equipment:
		if w := v.Armor.Weight; w != "" && w != ArmorLight && w != ArmorMedium && w != ArmorHeavy {
			errs = append(errs, fmt.Errorf("armor weight class must be light, medium or heavy; got %q", w))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("item %q validation failed: %w", c.ID, errors.Join(errs...))
	}
	return nil
}
