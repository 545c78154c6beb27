package ruleset

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
)

// Feature is an automatic feature granted by a class at a level, or by a
// race or template.
type Feature struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Level       int           `yaml:"level"`
	Description string        `yaml:"description"`
	Changes     []change.Spec `yaml:"changes"`
	Flags       []string      `yaml:"flags"`
}

// ClassType separates base classes from prestige, racial hit dice and
// templates.
type ClassType string

const (
	ClassBase     ClassType = "base"
	ClassPrestige ClassType = "prestige"
	ClassRacial   ClassType = "racial"
	ClassNPC      ClassType = "npc"
	ClassTemplate ClassType = "template"
)

// Progression holds the level-driven numbers of a class. Class templates
// and class items both carry one; non-zero item fields override the
// template.
type Progression struct {
	Type        ClassType                  `yaml:"class_type,omitempty" json:"class_type,omitempty"`
	HitDie      int                        `yaml:"hit_die,omitempty" json:"hit_die,omitempty"`
	BAB         BABProgression             `yaml:"bab,omitempty" json:"bab,omitempty"`
	Saves       map[string]SaveProgression `yaml:"saves,omitempty" json:"saves,omitempty"`
	ClassSkills []string                   `yaml:"class_skills,omitempty" json:"class_skills,omitempty"`

	// CasterKind adds this class's levels to the prestige caster level of
	// the matching spellbook kind (arcane, divine, psionic, card).
	CasterKind         string `yaml:"caster_kind,omitempty" json:"caster_kind,omitempty"`
	SneakAttackGroup   string `yaml:"sneak_attack_group,omitempty" json:"sneak_attack_group,omitempty"`
	SneakAttackFormula string `yaml:"sneak_attack_formula,omitempty" json:"sneak_attack_formula,omitempty"`
	TurnUndeadFormula  string `yaml:"turn_undead_formula,omitempty" json:"turn_undead_formula,omitempty"`
	PowerPointTable    []int  `yaml:"power_point_table,omitempty" json:"power_point_table,omitempty"`
	PowerPointAbility  string `yaml:"power_point_ability,omitempty" json:"power_point_ability,omitempty"`
}

// Merge returns p with every non-zero field of over applied.
func (p Progression) Merge(over Progression) Progression {
	if over.Type != "" {
		p.Type = over.Type
	}
	if over.HitDie != 0 {
		p.HitDie = over.HitDie
	}
	if over.BAB != "" {
		p.BAB = over.BAB
	}
	if len(over.Saves) > 0 {
		merged := make(map[string]SaveProgression, len(p.Saves)+len(over.Saves))
		for k, v := range p.Saves {
			merged[k] = v
		}
		for k, v := range over.Saves {
			merged[k] = v
		}
		p.Saves = merged
	}
	if len(over.ClassSkills) > 0 {
		p.ClassSkills = over.ClassSkills
	}
	if over.CasterKind != "" {
		p.CasterKind = over.CasterKind
	}
	if over.SneakAttackGroup != "" {
		p.SneakAttackGroup = over.SneakAttackGroup
	}
	if over.SneakAttackFormula != "" {
		p.SneakAttackFormula = over.SneakAttackFormula
	}
	if over.TurnUndeadFormula != "" {
		p.TurnUndeadFormula = over.TurnUndeadFormula
	}
	if len(over.PowerPointTable) > 0 {
		p.PowerPointTable = over.PowerPointTable
	}
	if over.PowerPointAbility != "" {
		p.PowerPointAbility = over.PowerPointAbility
	}
	if p.Type == "" {
		p.Type = ClassBase
	}
	return p
}

// Class defines a class template referenced by class items.
//
// Precondition: ID and Name must be non-empty after loading.
type Class struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Progression `yaml:",inline"`

	Features []Feature `yaml:"features"`
}

// Race defines a race template referenced by race items.
type Race struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Size            string        `yaml:"size"`
	LevelAdjustment int           `yaml:"level_adjustment"`
	Changes         []change.Spec `yaml:"changes"`
	Features        []Feature     `yaml:"features"`
}

// LoadClasses reads all .yaml files in dir and parses each as a Class.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed classes (may be empty slice) or a non-nil error.
func LoadClasses(dir string) ([]*Class, error) {
	return loadAll[Class](dir, "class")
}

// LoadRaces reads all .yaml files in dir and parses each as a Race.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed races (may be empty slice) or a non-nil error.
func LoadRaces(dir string) ([]*Race, error) {
	return loadAll[Race](dir, "race")
}

func loadAll[T any](dir, kind string) ([]*T, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var v T
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("parsing %s file %s: %w", kind, path, err)
		}
		out = append(out, &v)
	}
	return out, nil
}
