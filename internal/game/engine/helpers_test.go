package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/condition"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

func saves(fort, ref, will ruleset.SaveProgression) map[string]ruleset.SaveProgression {
	return map[string]ruleset.SaveProgression{"fort": fort, "ref": ref, "will": will}
}

// makeTestRules returns a small ruleset with one class per progression
// shape used by the tests.
func makeTestRules() *ruleset.Registry {
	reg := ruleset.NewRegistry()
	reg.RegisterClass(&ruleset.Class{ID: "fighter", Name: "Fighter", Progression: ruleset.Progression{
		Type: ruleset.ClassBase, HitDie: 10, BAB: ruleset.BABHigh,
		Saves:       saves(ruleset.SaveHigh, ruleset.SaveLow, ruleset.SaveLow),
		ClassSkills: []string{"clm", "jmp", "swm"},
	}})
	reg.RegisterClass(&ruleset.Class{
		ID: "rogue", Name: "Rogue",
		Progression: ruleset.Progression{
			Type: ruleset.ClassBase, HitDie: 6, BAB: ruleset.BABMed,
			Saves:              saves(ruleset.SaveLow, ruleset.SaveHigh, ruleset.SaveLow),
			ClassSkills:        []string{"hid", "mos", "tmb"},
			SneakAttackGroup:   "sneak",
			SneakAttackFormula: "ceil(@level / 2)",
		},
		Features: []ruleset.Feature{
			{ID: "trapfinding", Name: "Trapfinding", Level: 1},
			{ID: "evasion", Name: "Evasion", Level: 2},
			{ID: "trap-sense", Name: "Trap Sense", Level: 3, Changes: []change.Spec{
				{Formula: "floor(@classes.rogue.level / 3)", Target: "ref", Type: "untyped"},
			}},
			{ID: "uncanny-dodge", Name: "Uncanny Dodge", Level: 4, Flags: []string{"uncannyDodge"}},
		},
	})
	reg.RegisterClass(&ruleset.Class{ID: "wizard", Name: "Wizard", Progression: ruleset.Progression{
		Type: ruleset.ClassBase, HitDie: 4, BAB: ruleset.BABLow,
		Saves: saves(ruleset.SaveLow, ruleset.SaveLow, ruleset.SaveHigh),
	}})
	reg.RegisterClass(&ruleset.Class{ID: "loremaster", Name: "Loremaster", Progression: ruleset.Progression{
		Type: ruleset.ClassPrestige, HitDie: 4, BAB: ruleset.BABLow, CasterKind: "arcane",
		Saves: saves(ruleset.SaveLow, ruleset.SaveLow, ruleset.SaveHigh),
	}})
	reg.RegisterClass(&ruleset.Class{ID: "cleric", Name: "Cleric", Progression: ruleset.Progression{
		Type: ruleset.ClassBase, HitDie: 8, BAB: ruleset.BABMed, TurnUndeadFormula: "@level",
		Saves: saves(ruleset.SaveHigh, ruleset.SaveLow, ruleset.SaveHigh),
	}})
	reg.RegisterRace(&ruleset.Race{
		ID: "giantkin", Name: "Giantkin",
		Changes: []change.Spec{
			{Formula: "4", Target: "str", Type: "racial"},
			{Formula: "2", Target: "con", Type: "racial"},
			{Formula: "2", Target: "nac", Type: "base"},
			{Formula: "10", Target: "landSpeed", Type: "untyped"},
		},
		Features: []ruleset.Feature{{ID: "rock-throwing", Name: "Rock Throwing"}},
	})
	return reg
}

func newTestEngine(opts ...engine.Option) *engine.Engine {
	return engine.New(engine.DefaultConfig(), makeTestRules(), condition.Builtin(), opts...)
}

// makeCharacter returns a medium character with every ability at 10 and a
// 30 ft land speed.
func makeCharacter(items ...item.Item) *character.Character {
	abilities := map[string]character.Ability{}
	for _, ab := range sheet.Abilities {
		abilities[ab] = character.Ability{Value: 10}
	}
	return &character.Character{
		ID:        "c1",
		Name:      "Tester",
		Kind:      character.KindCharacter,
		Abilities: abilities,
		Speeds:    map[string]character.Speed{"land": {Base: 30}},
		Items:     items,
	}
}

func setAbility(c *character.Character, ab string, v int) {
	a := c.Abilities[ab]
	a.Value = v
	c.Abilities[ab] = a
}

func recompute(t *testing.T, e *engine.Engine, c *character.Character) *engine.Result {
	t.Helper()
	res, err := e.Recompute(context.Background(), engine.Input{Character: c})
	require.NoError(t, err)
	return res
}

func val(res *engine.Result, p sheet.Path) float64 { return res.Values[p.String()] }

func spec(formula, tgt, bt string) change.Spec {
	return change.Spec{Formula: formula, Target: tgt, Type: bt}
}

func feat(id string, changes ...change.Spec) *item.Feat {
	return &item.Feat{Common: item.Common{ID: id, Name: id, Type: item.KindFeat, Changes: changes}}
}

func buff(id string, active bool, changes ...change.Spec) *item.Buff {
	return &item.Buff{Common: item.Common{ID: id, Name: id, Type: item.KindBuff, Changes: changes}, Active: active}
}

func class(id, classID string, level int, hp float64) *item.Class {
	return &item.Class{Common: item.Common{ID: id, Name: classID, Type: item.KindClass}, ClassID: classID, Level: level, HP: hp}
}

func ptr[T any](v T) *T { return &v }

func warningCodes(res *engine.Result) []engine.WarningCode {
	out := make([]engine.WarningCode, len(res.Warnings))
	for i, w := range res.Warnings {
		out[i] = w.Code
	}
	return out
}
