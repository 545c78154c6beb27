// Package sheet holds the working snapshot of one recompute pass: every
// derived value of a character addressed by a closed set of attribute paths.
package sheet

import (
	"strconv"
	"strings"
)

// Attr identifies one derived attribute family. Parametrized families take
// their key (ability, skill, save, speed, spellbook), sub-skill or spell
// level from Path.
type Attr int

const (
	Invalid Attr = iota

	// abilities.<key>.*
	AbilityValue
	AbilityTotal
	AbilityMod
	AbilityOrigTotal
	AbilityOrigMod
	AbilityDamage
	AbilityDrain
	AbilityPenalty
	AbilityUserPenalty
	AbilityCheckMod
	AbilityReplace

	HD
	Level
	EnergyDrain
	Size

	ACNormal
	ACTouch
	ACFlatFooted

	BAB
	BABReplace
	AttackGeneral
	AttackMelee
	AttackRanged
	DamageGeneral
	DamageWeapon
	DamageSpell

	SaveTotal
	SaveBase
	SaveAbility

	CMB
	CMBAbility
	CMBBAB
	CMD
	CMDAbility
	CMDBAB
	CMDFlatFooted
	CMDFlatFootedAbility
	Init
	InitAbility

	HPMax
	WoundsMax
	VigorMax

	SkillRank
	SkillClassSkill
	SkillChangeBonus
	SkillMod

	SpeedBase
	SpeedTotal
	SpeedReplace

	ACPGear
	ACPEncumbrance
	ACPTotal
	MaxDex

	EncumbranceLevel
	CarriedWeight
	CarryLight
	CarryMedium
	CarryHeavy

	Misc
	PrestigeCL
	SpellbookCL
	SpellbookAbilityBonus
	SpellSlotBase
	SpellSlotChange
	SpellSlotMax

	SneakAttack
	PowerPoints
	TurnUndeadUses
	TurnUndeadDice
	SR

	attrCount
)

// templates render each family as a dotted formula path. {k}, {s} and {l}
// are replaced by Key, Sub and Level.
var templates = [attrCount]string{
	AbilityValue:       "abilities.{k}.value",
	AbilityTotal:       "abilities.{k}.total",
	AbilityMod:         "abilities.{k}.mod",
	AbilityOrigTotal:   "abilities.{k}.origTotal",
	AbilityOrigMod:     "abilities.{k}.origMod",
	AbilityDamage:      "abilities.{k}.damage",
	AbilityDrain:       "abilities.{k}.drain",
	AbilityPenalty:     "abilities.{k}.penalty",
	AbilityUserPenalty: "abilities.{k}.userPenalty",
	AbilityCheckMod:    "abilities.{k}.checkMod",
	AbilityReplace:     "abilities.{k}.replace",

	HD:          "attributes.hd.total",
	Level:       "details.level.value",
	EnergyDrain: "attributes.energyDrain",
	Size:        "traits.size",

	ACNormal:     "attributes.ac.normal.total",
	ACTouch:      "attributes.ac.touch.total",
	ACFlatFooted: "attributes.ac.flatFooted.total",

	BAB:           "attributes.bab.total",
	BABReplace:    "attributes.bab.replace",
	AttackGeneral: "attributes.attack.general",
	AttackMelee:   "attributes.attack.melee",
	AttackRanged:  "attributes.attack.ranged",
	DamageGeneral: "attributes.damage.general",
	DamageWeapon:  "attributes.damage.weapon",
	DamageSpell:   "attributes.damage.spell",

	SaveTotal:   "attributes.savingThrows.{k}.total",
	SaveBase:    "attributes.savingThrows.{k}.base",
	SaveAbility: "attributes.savingThrows.{k}.ability",

	CMB:                  "attributes.cmb.total",
	CMBAbility:           "attributes.cmb.ability",
	CMBBAB:               "attributes.cmb.bab",
	CMD:                  "attributes.cmd.total",
	CMDAbility:           "attributes.cmd.ability",
	CMDBAB:               "attributes.cmd.bab",
	CMDFlatFooted:        "attributes.cmd.flatFootedTotal",
	CMDFlatFootedAbility: "attributes.cmd.flatFootedAbility",
	Init:                 "attributes.init.total",
	InitAbility:          "attributes.init.ability",

	HPMax:     "attributes.hp.max",
	WoundsMax: "attributes.wounds.max",
	VigorMax:  "attributes.vigor.max",

	SkillRank:        "skills.{k}.rank",
	SkillClassSkill:  "skills.{k}.cs",
	SkillChangeBonus: "skills.{k}.changeBonus",
	SkillMod:         "skills.{k}.mod",

	SpeedBase:    "attributes.speed.{k}.base",
	SpeedTotal:   "attributes.speed.{k}.total",
	SpeedReplace: "attributes.speed.{k}.replace",

	ACPGear:        "attributes.acp.gear",
	ACPEncumbrance: "attributes.acp.encumbrance",
	ACPTotal:       "attributes.acp.total",
	MaxDex:         "attributes.maxDexBonus",

	EncumbranceLevel: "attributes.encumbrance.level",
	CarriedWeight:    "attributes.encumbrance.carriedWeight",
	CarryLight:       "attributes.encumbrance.levels.light",
	CarryMedium:      "attributes.encumbrance.levels.medium",
	CarryHeavy:       "attributes.encumbrance.levels.heavy",

	Misc:                  "attributes.{k}",
	PrestigeCL:            "attributes.prestigeCl.{k}.max",
	SpellbookCL:           "attributes.spells.spellbooks.{k}.cl.total",
	SpellbookAbilityBonus: "attributes.spells.spellbooks.{k}.ability.bonus",
	SpellSlotBase:         "attributes.spells.spellbooks.{k}.spells.spell{l}.base",
	SpellSlotChange:       "attributes.spells.spellbooks.{k}.spells.spell{l}.changeBonus",
	SpellSlotMax:          "attributes.spells.spellbooks.{k}.spells.spell{l}.max",

	SneakAttack:    "attributes.sneakAttackDiceTotal",
	PowerPoints:    "attributes.powerPointsTotal",
	TurnUndeadUses: "attributes.turnUndeadUsesTotal",
	TurnUndeadDice: "attributes.turnUndeadHdTotal",
	SR:             "attributes.sr.total",
}

// Path addresses one value on the sheet.
type Path struct {
	Attr  Attr
	Key   string
	Sub   string
	Level int
}

// At returns the unparametrized path for a.
func At(a Attr) Path { return Path{Attr: a} }

// Of returns the path of family a for key.
func Of(a Attr, key string) Path { return Path{Attr: a, Key: key} }

// SubSkill returns the path of a skill family for a sub-skill.
func SubSkill(a Attr, skill, sub string) Path { return Path{Attr: a, Key: skill, Sub: sub} }

// Slot returns the path of a spell slot family for book and level.
func Slot(a Attr, book string, level int) Path { return Path{Attr: a, Key: book, Level: level} }

// String returns the dotted formula path, e.g. "abilities.str.mod".
//
// Precondition: p.Attr is a defined family.
func (p Path) String() string {
	if p.Attr <= Invalid || p.Attr >= attrCount {
		panic("sheet: invalid attribute " + strconv.Itoa(int(p.Attr)))
	}
	t := templates[p.Attr]
	if p.Sub != "" {
		// Skill families on a sub-skill nest under the parent skill.
		t = strings.Replace(t, "skills.{k}.", "skills.{k}.subSkills.{s}.", 1)
	}
	if !strings.Contains(t, "{") {
		return t
	}
	r := strings.NewReplacer("{k}", p.Key, "{s}", p.Sub, "{l}", strconv.Itoa(p.Level))
	return r.Replace(t)
}
