package config

import (
	"fmt"

	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
)

// HitDiceConfig configures hit point generation for one kind of hit dice.
type HitDiceConfig struct {
	Auto      bool    `mapstructure:"auto"`
	Rate      float64 `mapstructure:"rate"`
	Maximized int     `mapstructure:"maximized"`
}

// HealthRulesConfig selects the hit point rules.
type HealthRulesConfig struct {
	PC     HitDiceConfig `mapstructure:"pc"`
	NPC    HitDiceConfig `mapstructure:"npc"`
	Racial HitDiceConfig `mapstructure:"racial"`
	// Rounding is "up", "nearest" or "down".
	Rounding string `mapstructure:"rounding"`
	// Continuity is "discrete" or "continuous".
	Continuity string `mapstructure:"continuity"`
}

// BaseBonusRulesConfig selects how BAB and saves add up across classes.
type BaseBonusRulesConfig struct {
	// Mode is "discrete" or "fractional".
	Mode     string `mapstructure:"mode"`
	Rounding string `mapstructure:"rounding"`
}

// RulesConfig is the settings provider for the recompute engine.
type RulesConfig struct {
	Health    HealthRulesConfig    `mapstructure:"health"`
	BaseBonus BaseBonusRulesConfig `mapstructure:"base_bonus"`
	// Units is "imperial" or "metric".
	Units               string `mapstructure:"units"`
	HeavyArmorFullSpeed bool   `mapstructure:"heavy_armor_full_speed"`
}

// ConfigurationError reports an invalid rules setting and the value used
// instead.
type ConfigurationError struct {
	Key      string
	Value    any
	Fallback any
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rules.%s: invalid value %v, using %v", e.Key, e.Value, e.Fallback)
}

// EngineConfig converts r into an immutable engine.Config. Every invalid
// setting falls back to its default and is reported as a
// *ConfigurationError.
//
// Postcondition: the returned Config is always usable.
func (r RulesConfig) EngineConfig() (engine.Config, []error) {
	cfg := engine.DefaultConfig()
	var errs []error
	invalid := func(key string, value, fallback any) {
		errs = append(errs, &ConfigurationError{Key: key, Value: value, Fallback: fallback})
	}

	hitDice := func(key string, h HitDiceConfig, def engine.HitDice) engine.HitDice {
		out := engine.HitDice{Auto: h.Auto, Rate: h.Rate, Maximized: h.Maximized}
		if h.Rate < 0 || h.Rate > 1 {
			invalid("health."+key+".rate", h.Rate, def.Rate)
			out.Rate = def.Rate
		}
		if h.Maximized < 0 {
			invalid("health."+key+".maximized", h.Maximized, def.Maximized)
			out.Maximized = def.Maximized
		}
		return out
	}
	cfg.Health.PC = hitDice("pc", r.Health.PC, cfg.Health.PC)
	cfg.Health.NPC = hitDice("npc", r.Health.NPC, cfg.Health.NPC)
	cfg.Health.Racial = hitDice("racial", r.Health.Racial, cfg.Health.Racial)

	if r.Health.Rounding != "" {
		if rd, err := ruleset.ParseRounding(r.Health.Rounding); err == nil {
			cfg.Health.Rounding = rd
		} else {
			invalid("health.rounding", r.Health.Rounding, cfg.Health.Rounding)
		}
	}
	switch r.Health.Continuity {
	case "", "discrete":
	case "continuous":
		cfg.Health.Continuous = true
	default:
		invalid("health.continuity", r.Health.Continuity, "discrete")
	}

	switch r.BaseBonus.Mode {
	case "", "discrete":
	case "fractional":
		cfg.BaseBonus.Fractional = true
	default:
		invalid("base_bonus.mode", r.BaseBonus.Mode, "discrete")
	}
	if r.BaseBonus.Rounding != "" {
		if rd, err := ruleset.ParseRounding(r.BaseBonus.Rounding); err == nil {
			cfg.BaseBonus.Rounding = rd
		} else {
			invalid("base_bonus.rounding", r.BaseBonus.Rounding, cfg.BaseBonus.Rounding)
		}
	}

	switch r.Units {
	case "", "imperial":
	case "metric":
		cfg.Metric = true
	default:
		invalid("units", r.Units, "imperial")
	}
	cfg.House.HeavyArmorFullSpeed = r.HeavyArmorFullSpeed
	return cfg, errs
}
