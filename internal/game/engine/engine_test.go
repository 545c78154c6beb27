package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/condition"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

var (
	acNormal     = sheet.At(sheet.ACNormal)
	acTouch      = sheet.At(sheet.ACTouch)
	acFlatFooted = sheet.At(sheet.ACFlatFooted)
	cmb          = sheet.At(sheet.CMB)
	cmd          = sheet.At(sheet.CMD)
	bab          = sheet.At(sheet.BAB)
	hpMax        = sheet.At(sheet.HPMax)
)

func TestAbilityMod(t *testing.T) {
	assert.Equal(t, 2.0, engine.AbilityMod(14, 0, 0, 0))
	assert.Equal(t, -2.0, engine.AbilityMod(7, 0, 0, 0))
	assert.Equal(t, 0.0, engine.AbilityMod(14, 4, 0, 0))
	assert.Equal(t, 1.0, engine.AbilityMod(14, 0, -2, 0))
	assert.Equal(t, -5.0, engine.AbilityMod(0, 0, 0, 0))
	assert.Equal(t, -5.0, engine.AbilityMod(-4, 0, 0, 0))
}

func TestAbilityMod_FloorProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := float64(rapid.IntRange(-10, 60).Draw(rt, "total"))
		m := engine.AbilityMod(total, 0, 0, 0)
		if m < -5 {
			rt.Fatalf("mod %v below -5", m)
		}
		if m > -5 && !(2*m <= total-10 && total-10 < 2*m+2) {
			rt.Fatalf("mod %v is not floor((%v-10)/2)", m, total)
		}
	})
}

func TestRecompute_AbilityModFromSheet_Property(t *testing.T) {
	e := newTestEngine()
	rapid.Check(t, func(rt *rapid.T) {
		c := makeCharacter()
		str := rapid.IntRange(1, 40).Draw(rt, "str")
		setAbility(c, "str", str)
		res, err := e.Recompute(context.Background(), engine.Input{Character: c})
		if err != nil {
			rt.Fatal(err)
		}
		want := engine.AbilityMod(float64(str), 0, 0, 0)
		if got := val(res, sheet.Of(sheet.AbilityMod, "str")); got != want {
			rt.Fatalf("str %d: mod %v, want %v", str, got, want)
		}
		if got := val(res, cmb); got != want {
			rt.Fatalf("str %d: cmb %v, want %v", str, got, want)
		}
	})
}

// TestRecompute_ACDodgeAndSize verifies 10 + 4 enh armor + 2 dodge + 1 size = 17.
func TestRecompute_ACDodgeAndSize(t *testing.T) {
	armor := &item.Equipment{
		Common:        item.Common{ID: "armor", Name: "Chain Shirt", Type: item.KindEquipment},
		Equipped:      true,
		EquipmentType: "armor",
		Armor:         item.Armor{Enh: 4},
	}
	c := makeCharacter(armor, feat("dodge", spec("2", "ac", "dodge")))
	c.Size = "sm"

	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 17.0, val(res, acNormal))
	assert.Equal(t, 13.0, val(res, acTouch))
	assert.Equal(t, 15.0, val(res, acFlatFooted))
	assert.Equal(t, 11.0, val(res, cmd))
}

// TestRecompute_BlindedSuppressesDex verifies loseDexToAC removes Dex from AC and CMD.
func TestRecompute_BlindedSuppressesDex(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter()
	setAbility(c, "dex", 16)

	res := recompute(t, e, c)
	assert.Equal(t, 13.0, val(res, acNormal))
	assert.Equal(t, 13.0, val(res, acTouch))
	assert.Equal(t, 13.0, val(res, cmd))

	c.Conditions = []string{"blinded"}
	res = recompute(t, e, c)
	assert.Equal(t, 8.0, val(res, acNormal))
	assert.Equal(t, 8.0, val(res, acTouch))
	assert.Equal(t, 8.0, val(res, acFlatFooted))
	assert.Equal(t, 10.0, val(res, cmd))
	assert.Contains(t, res.Flags, change.LoseDexToAC)
}

func TestRecompute_LoseDexDropsDodge(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter(feat("dodge", spec("1", "ac", "dodge")))
	setAbility(c, "dex", 16)

	assert.Equal(t, 14.0, val(recompute(t, e, c), acNormal))
	c.Conditions = []string{"stunned"}
	assert.Equal(t, 8.0, val(recompute(t, e, c), acNormal))
}

// TestRecompute_SkillRank verifies class skill 5 + 2 = 7 and cross-class floor(5/2) + 2 = 4.
func TestRecompute_SkillRank(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter()
	setAbility(c, "str", 14)
	c.Skills = map[string]character.Skill{"clm": {Rank: 5, ClassSkill: ptr(true)}}
	assert.Equal(t, 7.0, val(recompute(t, e, c), sheet.Of(sheet.SkillMod, "clm")))

	c.Skills = map[string]character.Skill{"clm": {Rank: 5, ClassSkill: ptr(false)}}
	assert.Equal(t, 4.0, val(recompute(t, e, c), sheet.Of(sheet.SkillMod, "clm")))
}

func TestRecompute_ClassSkillFromClass(t *testing.T) {
	c := makeCharacter(class("f", "fighter", 1, 10))
	c.Skills = map[string]character.Skill{"clm": {Rank: 4}, "hid": {Rank: 4}}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 1.0, val(res, sheet.Of(sheet.SkillClassSkill, "clm")))
	assert.Equal(t, 4.0, val(res, sheet.Of(sheet.SkillMod, "clm")))
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.SkillMod, "hid")))
}

// TestRecompute_BABReplace verifies a replace sets BAB regardless of additive bonuses.
func TestRecompute_BABReplace(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter(
		class("f", "fighter", 4, 30),
		feat("bonus", spec("2", "bab", "untyped")),
	)
	res := recompute(t, e, c)
	assert.Equal(t, 6.0, val(res, bab))
	assert.Equal(t, 6.0, val(res, cmb))

	c.Items = append(c.Items, buff("transformation", true, spec("10", "bab", "replace")))
	res = recompute(t, e, c)
	assert.Equal(t, 10.0, val(res, bab))
	assert.Equal(t, 10.0, val(res, sheet.At(sheet.BABReplace)))
	assert.Equal(t, 10.0, val(res, cmb))
	assert.Equal(t, 20.0, val(res, cmd))
}

// TestRecompute_BABReplaceCoversAttackAlias verifies a BAB replace also
// overrides bonuses declared on babattack, whichever alias carries it.
func TestRecompute_BABReplaceCoversAttackAlias(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter(
		class("f", "fighter", 5, 40),
		buff("transformation", true, spec("10", "bab", "replace")),
		feat("weapon training", spec("2", "babattack", "untyped")),
		feat("bonus", spec("3", "bab", "untyped")),
	)
	res := recompute(t, e, c)
	assert.Equal(t, 10.0, val(res, bab))
	assert.Equal(t, 10.0, val(res, cmb))
	assert.Equal(t, 20.0, val(res, cmd))

	c = makeCharacter(
		class("f", "fighter", 5, 40),
		buff("transformation", true, spec("10", "babattack", "replace")),
		feat("bonus", spec("3", "bab", "untyped")),
	)
	res = recompute(t, e, c)
	assert.Equal(t, 10.0, val(res, bab))
	assert.Equal(t, 10.0, val(res, cmb))
}

func TestRecompute_AbilityReplaceKeepsAdditive(t *testing.T) {
	c := makeCharacter(
		buff("giant form", true, spec("20", "str", "replace")),
		buff("bull", true, spec("2", "str", "enh")),
	)
	setAbility(c, "str", 10)
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 22.0, val(res, sheet.Of(sheet.AbilityTotal, "str")))
	assert.Equal(t, 6.0, val(res, sheet.Of(sheet.AbilityMod, "str")))
	assert.Equal(t, 12.0, val(res, sheet.Of(sheet.AbilityOrigTotal, "str")))
	assert.Equal(t, 1.0, val(res, sheet.Of(sheet.AbilityOrigMod, "str")))
}

// TestRecompute_SpeedReplace verifies a speed replace discards additive
// speed bonuses, including allSpeeds ones applied in a later run.
func TestRecompute_SpeedReplace(t *testing.T) {
	c := makeCharacter(
		buff("overland", true, spec("60", "landSpeed", "replace")),
		buff("longstrider", true, spec("10", "landSpeed", "enh")),
		buff("haste", true, spec("30", "allSpeeds", "enh")),
	)
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 60.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))
	assert.Equal(t, 60.0, val(res, sheet.Of(sheet.SpeedReplace, "land")))
	assert.Equal(t, 0.0, val(res, sheet.Of(sheet.SpeedTotal, "fly")))
}

// TestRecompute_AbilityFeedsDependents verifies ability changes reach CMB, CMD and saves.
func TestRecompute_AbilityFeedsDependents(t *testing.T) {
	c := makeCharacter(
		class("f", "fighter", 4, 30),
		buff("bull", true, spec("4", "str", "enh")),
		buff("bear", true, spec("2", "con", "enh")),
	)
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.AbilityMod, "str")))
	assert.Equal(t, 6.0, val(res, cmb))
	assert.Equal(t, 16.0, val(res, cmd))
	assert.Equal(t, 5.0, val(res, sheet.Of(sheet.SaveTotal, "fort")))
	assert.Equal(t, 30.0+4, val(res, hpMax))
}

func TestRecompute_ItemOrderIndependent_Property(t *testing.T) {
	e := newTestEngine()
	items := []item.Item{
		class("f", "fighter", 4, 30),
		class("r", "rogue", 2, 9),
		buff("bull", true, spec("4", "str", "enh")),
		buff("cat", true, spec("4", "dex", "enh")),
		buff("heroism", true, spec("2", "attack", "morale"), spec("2", "allSavingThrows", "morale")),
		feat("dodge", spec("1", "ac", "dodge")),
		feat("toughness", spec("3", "mhp", "untyped")),
		feat("weak", spec("-1", "str", "penalty")),
		&item.Equipment{
			Common:   item.Common{ID: "ring", Name: "Ring", Type: item.KindEquipment, Changes: []change.Spec{spec("2", "ac", "deflection")}},
			Equipped: true,
		},
		&item.Equipment{
			Common:   item.Common{ID: "cloak", Name: "Cloak", Type: item.KindEquipment, Changes: []change.Spec{spec("1", "allSavingThrows", "resist")}},
			Equipped: true,
		},
	}
	want := recompute(t, e, makeCharacter(items...)).Values
	rapid.Check(t, func(rt *rapid.T) {
		shuffled := rapid.Permutation(items).Draw(rt, "items")
		res, err := e.Recompute(context.Background(), engine.Input{Character: makeCharacter(shuffled...)})
		if err != nil {
			rt.Fatal(err)
		}
		for k, v := range want {
			if res.Values[k] != v {
				rt.Fatalf("%s = %v, want %v", k, res.Values[k], v)
			}
		}
	})
}

func TestRecompute_TypedStacking(t *testing.T) {
	c := makeCharacter(
		feat("a", spec("2", "attack", "enh")),
		feat("b", spec("4", "attack", "enh")),
		feat("c", spec("1", "attack", "enh")),
		feat("d", spec("2", "damage", "untyped")),
		feat("e", spec("3", "damage", "untyped")),
		feat("f", spec("3", "init", "enh")),
		feat("g", spec("-2", "init", "enh")),
	)
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 4.0, val(res, sheet.At(sheet.AttackGeneral)))
	assert.Equal(t, 5.0, val(res, sheet.At(sheet.DamageGeneral)))
	assert.Equal(t, 1.0, val(res, sheet.At(sheet.Init)))

	details := res.SourceDetails[sheet.At(sheet.AttackGeneral).String()]
	require.Len(t, details, 1)
	assert.Equal(t, "b", details[0].Name)
}

func TestRecompute_SelfReferenceIsMasked(t *testing.T) {
	c := makeCharacter(feat("mirror", spec("@attributes.ac.normal.total", "ac", "untyped")))
	assert.Equal(t, 10.0, val(recompute(t, newTestEngine(), c), acNormal))
}

func TestRecompute_ItemFormulaValues(t *testing.T) {
	b := buff("divine favor", true, spec("floor(@item.level / 3)", "attack", "luck"))
	b.Level = 6
	res := recompute(t, newTestEngine(), makeCharacter(b))
	assert.Equal(t, 2.0, val(res, sheet.At(sheet.AttackGeneral)))
}

func TestRecompute_InactiveItemsDoNotContribute(t *testing.T) {
	sword := &item.Weapon{
		Common:   item.Common{ID: "sword", Name: "Sword", Type: item.KindWeapon, Changes: []change.Spec{spec("1", "attack", "enh")}},
		Equipped: true,
		Melded:   true,
	}
	c := makeCharacter(sword, buff("off", false, spec("4", "str", "enh")))
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 0.0, val(res, sheet.At(sheet.AttackGeneral)))
	assert.Equal(t, 10.0, val(res, sheet.Of(sheet.AbilityTotal, "str")))
}

func TestRecompute_HitPoints(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter(class("f", "fighter", 1, 10))
	setAbility(c, "con", 14)

	res := recompute(t, e, c)
	assert.Equal(t, 12.0, val(res, hpMax))
	assert.Equal(t, 12.0, res.HPValue)
	assert.Equal(t, 10.0, val(res, sheet.At(sheet.VigorMax)))
	assert.Equal(t, 28.0, val(res, sheet.At(sheet.WoundsMax)))

	c.HP = character.Pool{Value: 5, Max: 10}
	assert.Equal(t, 7.0, recompute(t, e, c).HPValue)

	c.HP = character.Pool{Value: 12, Max: 8}
	assert.Equal(t, 12.0, recompute(t, e, c).HPValue)
}

func TestRecompute_AutomaticHitPoints(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Health.PC = engine.HitDice{Auto: true, Rate: .5, Maximized: 1}
	e := engine.New(cfg, makeTestRules(), condition.Builtin())

	res := recompute(t, e, makeCharacter(class("f", "fighter", 3, 0)))
	assert.Equal(t, 22.0, val(res, hpMax))
	assert.Equal(t, 22.0, val(res, sheet.At(sheet.VigorMax)))
}

func TestRecompute_FractionalBaseBonus(t *testing.T) {
	c := makeCharacter(class("r", "rogue", 1, 6), class("w", "wizard", 1, 4))
	assert.Equal(t, 0.0, val(recompute(t, newTestEngine(), c), bab))

	cfg := engine.DefaultConfig()
	cfg.BaseBonus = engine.BaseBonusConfig{Fractional: true, Rounding: ruleset.RoundDown}
	res := recompute(t, engine.New(cfg, makeTestRules(), condition.Builtin()), c)
	assert.Equal(t, 1.0, val(res, bab))
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.SaveBase, "ref")))
	assert.Equal(t, 0.0, val(res, sheet.Of(sheet.SaveBase, "fort")))
}

func TestRecompute_EnergyDrain(t *testing.T) {
	c := makeCharacter(class("f", "fighter", 4, 30))
	c.EnergyDrain = 2
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 20.0, val(res, hpMax))
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.SaveTotal, "fort")))
	assert.Equal(t, 2.0, val(res, cmb))
	assert.Equal(t, -2.0, val(res, sheet.Of(sheet.SkillMod, "clm")))
}

func TestRecompute_Encumbrance(t *testing.T) {
	e := newTestEngine()
	anvil := &item.Loot{Common: item.Common{ID: "anvil", Name: "Anvil", Type: item.KindLoot, Weight: 50, Carried: true}}
	c := makeCharacter(anvil)
	setAbility(c, "dex", 18)

	res := recompute(t, e, c)
	assert.Equal(t, 33.0, val(res, sheet.At(sheet.CarryLight)))
	assert.Equal(t, 66.0, val(res, sheet.At(sheet.CarryMedium)))
	assert.Equal(t, 100.0, val(res, sheet.At(sheet.CarryHeavy)))
	assert.Equal(t, 50.0, val(res, sheet.At(sheet.CarriedWeight)))
	assert.Equal(t, float64(ruleset.LoadMedium), val(res, sheet.At(sheet.EncumbranceLevel)))
	assert.Equal(t, 3.0, val(res, sheet.At(sheet.ACPTotal)))
	assert.Equal(t, 13.0, val(res, acNormal))
	assert.Equal(t, 20.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))
	assert.Equal(t, -3.0, val(res, sheet.Of(sheet.SkillMod, "clm")))

	c.Items = append(c.Items, &item.Feat{Common: item.Common{
		ID: "mule", Name: "Mule Back", Type: item.KindFeat, ChangeFlags: []change.Flag{change.NoEncumbrance},
	}})
	res = recompute(t, e, c)
	assert.Equal(t, 0.0, val(res, sheet.At(sheet.ACPTotal)))
	assert.Equal(t, 14.0, val(res, acNormal))
	assert.Equal(t, 30.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))
}

func TestRecompute_ArmorLimits(t *testing.T) {
	e := newTestEngine()
	plate := &item.Equipment{
		Common:        item.Common{ID: "plate", Name: "Half-Plate", Type: item.KindEquipment},
		Equipped:      true,
		EquipmentType: "armor",
		Masterwork:    true,
		Armor:         item.Armor{Value: 7, ACP: -7, MaxDex: ptr(0), Weight: item.ArmorHeavy},
	}
	c := makeCharacter(plate)
	setAbility(c, "dex", 14)

	res := recompute(t, e, c)
	assert.Equal(t, 17.0, val(res, acNormal))
	assert.Equal(t, 10.0, val(res, acTouch))
	assert.Equal(t, 6.0, val(res, sheet.At(sheet.ACPTotal)))
	assert.Equal(t, 0.0, val(res, sheet.At(sheet.MaxDex)))
	assert.Equal(t, 20.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))

	cfg := engine.DefaultConfig()
	cfg.House.HeavyArmorFullSpeed = true
	res = recompute(t, engine.New(cfg, makeTestRules(), condition.Builtin()), c)
	assert.Equal(t, 30.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))
}

func TestRecompute_PolymorphSuppressesRaceChanges(t *testing.T) {
	e := newTestEngine()
	race := &item.Race{Common: item.Common{ID: "race", Name: "Giantkin", Type: item.KindRace}, RaceID: "giantkin"}
	c := makeCharacter(race)
	c.HP = character.Pool{Value: 5, Max: 7}

	res := recompute(t, e, c)
	assert.Equal(t, 14.0, val(res, sheet.Of(sheet.AbilityTotal, "str")))
	assert.Equal(t, 12.0, val(res, sheet.Of(sheet.AbilityTotal, "con")))
	assert.Equal(t, 12.0, val(res, acNormal))
	assert.Equal(t, 40.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))

	c.Conditions = []string{"wildshaped"}
	res = recompute(t, e, c)
	assert.Equal(t, 10.0, val(res, sheet.Of(sheet.AbilityTotal, "str")))
	assert.Equal(t, 12.0, val(res, sheet.Of(sheet.AbilityTotal, "con")))
	assert.Equal(t, 10.0, val(res, acNormal))
	assert.Equal(t, 30.0, val(res, sheet.Of(sheet.SpeedTotal, "land")))
	assert.Equal(t, 5.0, res.HPValue)
}

func TestRecompute_ForcedAbilities(t *testing.T) {
	c := makeCharacter()
	setAbility(c, "str", 16)
	c.Conditions = []string{"paralyzed"}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 0.0, val(res, sheet.Of(sheet.AbilityTotal, "str")))
	assert.Equal(t, -5.0, val(res, sheet.Of(sheet.AbilityMod, "str")))
	assert.Equal(t, -5.0, val(res, cmb))
	assert.Equal(t, 5.0, val(res, acNormal))
}

func TestRecompute_ShakenPenalties(t *testing.T) {
	c := makeCharacter()
	c.Conditions = []string{"shaken"}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, -2.0, val(res, sheet.At(sheet.AttackGeneral)))
	assert.Equal(t, -2.0, val(res, sheet.Of(sheet.SaveTotal, "will")))
	assert.Equal(t, -2.0, val(res, sheet.Of(sheet.AbilityCheckMod, "str")))
	assert.Equal(t, -2.0, val(res, sheet.Of(sheet.SkillMod, "lis")))
}

func TestRecompute_Synergy(t *testing.T) {
	c := makeCharacter()
	c.Skills = map[string]character.Skill{"tmb": {Rank: 5}}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.SkillMod, "jmp")))
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.SkillMod, "blc")))
	assert.Equal(t, 0.0, val(res, sheet.Of(sheet.SkillMod, "clm")))
}

func TestRecompute_SubSkills(t *testing.T) {
	c := makeCharacter(feat("artisan", spec("2", "craftSkills", "competence")))
	setAbility(c, "int", 14)
	c.Skills = map[string]character.Skill{"crf": {SubSkills: map[string]character.SubSkill{
		"alchemy": {Name: "Alchemy", Rank: 4},
	}}}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 2.0, val(res, sheet.SubSkill(sheet.SkillChangeBonus, "crf", "alchemy")))
	assert.Equal(t, 6.0, val(res, sheet.SubSkill(sheet.SkillMod, "crf", "alchemy")))
	assert.Equal(t, 4.0, val(res, sheet.Of(sheet.SkillMod, "crf")))
}

func TestRecompute_SizeOverride(t *testing.T) {
	c := makeCharacter(&item.Buff{
		Common:       item.Common{ID: "enlarge", Name: "Enlarge Person", Type: item.KindBuff},
		Active:       true,
		SizeOverride: "lg",
	})
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 9.0, val(res, acNormal))
	assert.Equal(t, 1.0, val(res, sheet.At(sheet.Size)))
	assert.Equal(t, 1.0, val(res, cmb))
	assert.Equal(t, -4.0, val(res, sheet.Of(sheet.SkillMod, "hid")))
}

func TestRecompute_SpellSlotsAndCasterLevel(t *testing.T) {
	c := makeCharacter(
		class("w", "wizard", 3, 12),
		class("l", "loremaster", 2, 6),
		feat("extra", spec("1", "spells.primary.spell1", "untyped")),
	)
	setAbility(c, "int", 16)
	c.Spellbooks = map[string]character.Spellbook{"primary": {
		Kind: "arcane", Ability: "int", Class: "wizard", AutoSpellLevels: true,
		Slots: map[int]*float64{0: ptr(4.0), 1: ptr(2.0), 2: nil},
	}}

	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 5.0, val(res, sheet.Of(sheet.SpellbookCL, "primary")))
	assert.Equal(t, 2.0, val(res, sheet.Of(sheet.PrestigeCL, "arcane")))
	assert.Equal(t, 4.0, val(res, sheet.Slot(sheet.SpellSlotMax, "primary", 0)))
	assert.Equal(t, 4.0, val(res, sheet.Slot(sheet.SpellSlotMax, "primary", 1)))
	assert.NotContains(t, res.Values, sheet.Slot(sheet.SpellSlotMax, "primary", 2).String())
}

func TestRecompute_ClassFormulas(t *testing.T) {
	c := makeCharacter(
		class("cl", "cleric", 3, 20),
		class("r", "rogue", 5, 25),
		feat("extra turning", spec("2", "turnUndead", "untyped")),
	)
	setAbility(c, "cha", 14)
	c.SRFormula = "11 + @attributes.hd.total"
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 3.0, val(res, sheet.At(sheet.TurnUndeadDice)))
	assert.Equal(t, 7.0, val(res, sheet.At(sheet.TurnUndeadUses)))
	assert.Equal(t, 3.0, val(res, sheet.At(sheet.SneakAttack)))
	assert.Equal(t, 19.0, val(res, sheet.At(sheet.SR)))
}

func TestRecompute_MissingMaster(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter(buff("link", true, spec("@master.abilities.cha.mod", "ac", "untyped")))
	c.MasterID = "m1"

	res := recompute(t, e, c)
	assert.Equal(t, 10.0, val(res, acNormal))
	assert.Contains(t, warningCodes(res), engine.WarnMissingDependency)
	assert.NotEmpty(t, res.Notice)

	master := makeCharacter()
	master.ID = "m1"
	master.Derived = map[string]float64{"abilities.cha.mod": 3}
	res, err := e.Recompute(context.Background(), engine.Input{Character: c, Master: master})
	require.NoError(t, err)
	assert.Equal(t, 13.0, val(res, acNormal))
	assert.Empty(t, res.Notice)
}

func TestRecompute_UnresolvedTargetWarns(t *testing.T) {
	c := makeCharacter(
		feat("typo", spec("2", "allAavingThrows", "morale")),
		feat("badtype", spec("2", "fort", "bogus")),
		feat("noskill", spec("2", "skill.nope", "untyped")),
	)
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 0.0, val(res, sheet.Of(sheet.SaveTotal, "fort")))
	assert.Equal(t, []engine.WarningCode{
		engine.WarnUnresolvedTarget, engine.WarnUnresolvedTarget, engine.WarnUnresolvedTarget,
	}, warningCodes(res))
	assert.Empty(t, res.Notice)
}

func TestRecompute_FormulaErrorLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := newTestEngine(engine.WithLogger(zap.New(core)))
	c := makeCharacter(feat("broken", spec("2 +", "ac", "untyped")), feat("ok", spec("1", "ac", "untyped")))

	res := recompute(t, e, c)
	assert.Equal(t, 11.0, val(res, acNormal))
	assert.Equal(t, []engine.WarningCode{engine.WarnFormula}, warningCodes(res))
	assert.NotEmpty(t, res.Notice)
	require.Equal(t, 1, logs.FilterMessage("formula error").Len())
	entry := logs.FilterMessage("formula error").All()[0]
	assert.Equal(t, "broken", entry.ContextMap()["source"])
	assert.Equal(t, 1, logs.FilterMessage(res.Notice).Len())
}

func TestRecompute_UnknownCondition(t *testing.T) {
	c := makeCharacter()
	c.Conditions = []string{"bewitched"}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, []engine.WarningCode{engine.WarnUnknownCondition}, warningCodes(res))
}

func TestRecompute_Idempotent(t *testing.T) {
	e := newTestEngine()
	c := makeCharacter(
		class("r", "rogue", 5, 25),
		buff("rage", true, spec("1d4 + 2", "str", "morale")),
		feat("dodge", spec("1", "ac", "dodge")),
	)
	first := recompute(t, e, c)
	second := recompute(t, e, c)
	assert.Equal(t, first.Values, second.Values)
	assert.Equal(t, first.SourceDetails, second.SourceDetails)

	c.Derived = first.Values
	c.HP = character.Pool{Value: first.HPValue, Max: first.Values[hpMax.String()]}
	third := recompute(t, e, c)
	assert.Equal(t, first.Values, third.Values)
	assert.Empty(t, third.Diff)
	assert.Empty(t, third.Removed)
	assert.Equal(t, first.HPValue, third.HPValue)
}

func TestRecompute_DiffAndRemoved(t *testing.T) {
	c := makeCharacter()
	c.Derived = map[string]float64{"attributes.ac.normal.total": 12, "attributes.legacy": 1}
	res := recompute(t, newTestEngine(), c)
	assert.Equal(t, 10.0, res.Diff["attributes.ac.normal.total"])
	assert.Equal(t, []string{"attributes.legacy"}, res.Removed)
}

func TestRecompute_DoesNotMutateInput(t *testing.T) {
	c := makeCharacter(class("r", "rogue", 4, 20))
	before := len(c.Items)
	_ = recompute(t, newTestEngine(), c)
	assert.Len(t, c.Items, before)
	assert.Nil(t, c.Derived)
}

func TestRecompute_NilCharacter(t *testing.T) {
	_, err := newTestEngine().Recompute(context.Background(), engine.Input{})
	require.Error(t, err)
}

func TestRecompute_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	e := newTestEngine(engine.WithTracer(tp.Tracer("test")))

	_ = recompute(t, e, makeCharacter(feat("dodge", spec("1", "ac", "dodge"))))
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.Recompute", spans[0].Name())
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "c1", attrs["character.id"])
	assert.Contains(t, attrs, "records")
}

func TestRecompute_ShippedCharacter(t *testing.T) {
	rules, err := ruleset.LoadRegistry("../../../content")
	require.NoError(t, err)
	conds, err := condition.Load("../../../content/conditions")
	require.NoError(t, err)
	c, err := character.LoadFile("../../../content/characters/lidda.yaml")
	require.NoError(t, err)

	e := engine.New(engine.DefaultConfig(), rules, conds)
	res := recompute(t, e, c)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 5.0, val(res, sheet.Of(sheet.AbilityMod, "dex")))
	assert.Equal(t, 22.0, val(res, acNormal))
	assert.Equal(t, 3.0, val(res, sheet.At(sheet.SneakAttack)))
	assert.Equal(t, float64(ruleset.LoadLight), val(res, sheet.At(sheet.EncumbranceLevel)))
	assert.Len(t, res.FeatureSync.Create, 4)

	synced := engine.ApplyFeatureSync(c, res.FeatureSync)
	again := recompute(t, e, synced)
	assert.True(t, again.FeatureSync.Empty())
	assert.Contains(t, again.Flags, change.UncannyDodge)
	assert.Equal(t, val(res, sheet.Of(sheet.SaveTotal, "ref"))+1, val(again, sheet.Of(sheet.SaveTotal, "ref")))
	assert.Equal(t, val(res, acFlatFooted)+5, val(again, acFlatFooted))
}
