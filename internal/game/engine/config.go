package engine

import "github.com/cory-johannsen/d20sheet/internal/game/ruleset"

// HitDice configures how hit points are generated for one kind of hit dice.
type HitDice struct {
	// Auto rolls nothing: levels beyond Maximized give 1 + (die-1)*Rate.
	Auto      bool
	Rate      float64
	Maximized int
}

// HealthConfig selects the hit point generation rules.
type HealthConfig struct {
	PC       HitDice
	NPC      HitDice
	Racial   HitDice
	Rounding ruleset.Rounding
	// Continuous defers rounding to the final hit point maximum.
	Continuous bool
}

// BaseBonusConfig selects how BAB and saves add up across classes.
type BaseBonusConfig struct {
	Fractional bool
	Rounding   ruleset.Rounding
}

// HouseRules are optional rule toggles.
type HouseRules struct {
	HeavyArmorFullSpeed bool
}

// Config is the immutable ruleset configuration of a pass.
type Config struct {
	Health    HealthConfig
	BaseBonus BaseBonusConfig
	Metric    bool
	House     HouseRules
}

// DefaultConfig returns the documented defaults: manual hit points rounded
// up per level, discrete base bonuses rounded down, imperial units.
func DefaultConfig() Config {
	return Config{
		Health: HealthConfig{
			PC:       HitDice{Rate: 0.5, Maximized: 1},
			NPC:      HitDice{Rate: 0.5},
			Racial:   HitDice{Rate: 0.5},
			Rounding: ruleset.RoundUp,
		},
		BaseBonus: BaseBonusConfig{Rounding: ruleset.RoundDown},
	}
}
