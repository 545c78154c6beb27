package engine

import (
	"strings"

	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
)

// Env is what a ContextProvider sees of the pass.
type Env struct {
	Character *character.Character
	Master    *character.Character
	// Size is the effective size after buff overrides.
	Size ruleset.Size
}

// ContextProvider supplies ambient formula values merged beneath the live
// sheet in every scope.
type ContextProvider interface {
	Ambient(env Env) formula.Values
}

// ContextFunc adapts a function to ContextProvider.
type ContextFunc func(env Env) formula.Values

func (f ContextFunc) Ambient(env Env) formula.Values { return f(env) }

// DefaultContext exposes the size offset, the master's persisted values and
// the encumbrance thresholds of the previous sheet.
type DefaultContext struct{}

const encumbrancePrefix = "attributes.encumbrance.levels."

// Ambient implements ContextProvider.
func (DefaultContext) Ambient(env Env) formula.Values {
	v := formula.Values{
		"size":      float64(env.Size.Offset()),
		"sizeIndex": float64(env.Size),
	}
	if m := env.Master; m != nil {
		for k, val := range m.Derived {
			if strings.HasPrefix(k, "abilities.") || strings.HasPrefix(k, "attributes.") {
				v["master."+k] = val
			}
		}
		for ab, a := range m.Abilities {
			if _, ok := v["master.abilities."+ab+".total"]; !ok {
				v["master.abilities."+ab+".total"] = float64(a.Value)
			}
		}
	}
	if c := env.Character; c != nil {
		for k, val := range c.Derived {
			if level, ok := strings.CutPrefix(k, encumbrancePrefix); ok {
				v["encumbrance."+level] = val
			}
		}
	}
	return v
}
