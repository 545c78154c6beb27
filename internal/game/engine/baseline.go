package engine

import (
	"maps"
	"math"
	"slices"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/dice"
	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

// casterKinds are the spellbook kinds that track a prestige caster level.
var casterKinds = []string{"arcane", "divine", "psionic", "card"}

var miscKeys = []string{"regen", "fastHeal", "fortification", "asf", "concealment", "cr"}

// saveAbilities maps each save to the ability that feeds it.
var saveAbilities = map[string]string{"fort": "con", "ref": "dex", "will": "wis"}

// AbilityMod is the ability modifier for the given total, damage, penalty
// and user penalty, floored at -5.
func AbilityMod(total, damage, penalty, userPenalty float64) float64 {
	return max(-5, math.Floor((total-damage-math.Abs(penalty)-userPenalty-10)/2))
}

// baseline resets every derived attribute before any change applies.
func (p *pass) baseline() {
	s := p.s
	hd := p.hitDieTotal()
	la := 0
	if r, ok := p.c.Race(); ok {
		la = r.LevelAdjustment
		if la == 0 && p.race != nil {
			la = p.race.LevelAdjustment
		}
	}
	ed := float64(p.c.EnergyDrain)
	s.Set(sheet.At(sheet.HD), float64(hd))
	s.Set(sheet.At(sheet.Level), float64(hd+la))
	s.Set(sheet.At(sheet.EnergyDrain), ed)
	s.Set(sheet.At(sheet.Size), float64(p.size.Offset()))

	for _, ab := range sheet.Abilities {
		a, ok := p.c.Abilities[ab]
		if !ok {
			a.Value = 10
		}
		drain := math.Abs(float64(a.Drain))
		total := float64(a.Value) - drain
		s.Set(sheet.Of(sheet.AbilityValue, ab), float64(a.Value))
		s.Set(sheet.Of(sheet.AbilityTotal, ab), total)
		s.Set(sheet.Of(sheet.AbilityOrigTotal, ab), total)
		s.Set(sheet.Of(sheet.AbilityDamage, ab), float64(a.Damage))
		s.Set(sheet.Of(sheet.AbilityDrain, ab), drain)
		s.Set(sheet.Of(sheet.AbilityPenalty, ab), 0)
		s.Set(sheet.Of(sheet.AbilityUserPenalty, ab), float64(a.UserPenalty))
		s.Set(sheet.Of(sheet.AbilityCheckMod, ab), 0)
		s.Set(sheet.Of(sheet.AbilityReplace, ab), 0)
		p.refreshAbility(ab)
	}

	for _, a := range []sheet.Attr{sheet.ACNormal, sheet.ACTouch, sheet.ACFlatFooted} {
		s.Set(sheet.At(a), 10)
	}
	s.Set(sheet.At(sheet.BAB), p.baseAttackBonus())
	s.Set(sheet.At(sheet.BABReplace), 0)
	for _, a := range []sheet.Attr{
		sheet.AttackGeneral, sheet.AttackMelee, sheet.AttackRanged,
		sheet.DamageGeneral, sheet.DamageWeapon, sheet.DamageSpell,
	} {
		s.Set(sheet.At(a), 0)
	}
	for _, sv := range sheet.Saves {
		base := p.baseSave(sv) - ed
		s.Set(sheet.Of(sheet.SaveBase, sv), base)
		s.Set(sheet.Of(sheet.SaveTotal, sv), base)
		s.Set(sheet.Of(sheet.SaveAbility, sv), 0)
	}

	s.Set(sheet.At(sheet.CMB), -ed)
	s.Set(sheet.At(sheet.CMD), 10-ed)
	s.Set(sheet.At(sheet.CMDFlatFooted), 10-ed)
	for _, a := range []sheet.Attr{
		sheet.CMBAbility, sheet.CMBBAB, sheet.CMDAbility, sheet.CMDBAB,
		sheet.CMDFlatFootedAbility, sheet.Init, sheet.InitAbility,
	} {
		s.Set(sheet.At(a), 0)
	}

	s.Set(sheet.At(sheet.HPMax), p.c.HP.Base)
	s.Set(sheet.At(sheet.WoundsMax), p.c.Wounds.Base)
	s.Set(sheet.At(sheet.VigorMax), p.c.Vigor.Base)
	for _, k := range miscKeys {
		s.Set(sheet.Of(sheet.Misc, k), 0)
	}

	p.baselineSkills()
	for _, mode := range sheet.Speeds {
		base := p.c.Speeds[mode].Base
		s.Set(sheet.Of(sheet.SpeedBase, mode), base)
		s.Set(sheet.Of(sheet.SpeedTotal, mode), base)
		s.Set(sheet.Of(sheet.SpeedReplace, mode), 0)
	}
	p.baselineArmor()
	p.baselineSpellbooks()
	p.baselineClassFeatures()
	p.syncDependents()
}

// hitDieTotal sums class levels, racial hit dice included and templates
// excluded.
func (p *pass) hitDieTotal() int {
	hd := 0
	for _, ci := range p.classes {
		if ci.prog.Type != ruleset.ClassTemplate {
			hd += ci.item.Level
		}
	}
	return hd
}

func (p *pass) baseAttackBonus() float64 {
	bb := p.e.cfg.BaseBonus
	var total float64
	for _, ci := range p.classes {
		if ci.prog.Type == ruleset.ClassTemplate {
			continue
		}
		if bb.Fractional {
			total += ci.prog.BAB.Fractional(ci.item.Level)
		} else {
			total += float64(ci.prog.BAB.Discrete(ci.item.Level))
		}
	}
	if bb.Fractional {
		total = bb.Rounding.Apply(total)
	}
	return total
}

// baseSave sums the class contributions to save sv. Fractional mode adds
// the good-save +2 once across classes and rounds the sum.
func (p *pass) baseSave(sv string) float64 {
	bb := p.e.cfg.BaseBonus
	var (
		total float64
		good  bool
	)
	for _, ci := range p.classes {
		if ci.prog.Type == ruleset.ClassTemplate {
			continue
		}
		prog := ci.prog.Saves[sv]
		if bb.Fractional {
			total += prog.Fractional(ci.item.Level)
			good = good || (prog == ruleset.SaveHigh && ci.item.Level > 0)
		} else {
			total += float64(prog.Discrete(ci.item.Level))
		}
	}
	if bb.Fractional {
		if good {
			total += 2
		}
		total = bb.Rounding.Apply(total)
	}
	return total
}

// baselineSkills declares every ruleset skill plus the document's custom
// skills and zeroes their bonuses.
func (p *pass) baselineSkills() {
	s := p.s
	classSkills := map[string]bool{}
	for _, ci := range p.classes {
		for _, k := range ci.prog.ClassSkills {
			classSkills[k] = true
		}
	}
	declare := func(key, ability string, acp bool) {
		raw := p.c.Skills[key]
		if raw.Ability != "" {
			ability = raw.Ability
		}
		if raw.ACP != nil {
			acp = *raw.ACP
		}
		cs := classSkills[key]
		if raw.ClassSkill != nil {
			cs = *raw.ClassSkill
		}
		subs := slices.Sorted(maps.Keys(raw.SubSkills))
		s.DeclareSkill(sheet.Skill{Key: key, Ability: ability, ACP: acp, SubSkills: subs})
		s.Set(sheet.Of(sheet.SkillRank, key), raw.Rank)
		s.Set(sheet.Of(sheet.SkillClassSkill, key), boolValue(cs))
		s.Set(sheet.Of(sheet.SkillChangeBonus, key), 0)
		s.Set(sheet.Of(sheet.SkillMod, key), 0)
		for _, sub := range subs {
			s.Set(sheet.SubSkill(sheet.SkillRank, key, sub), raw.SubSkills[sub].Rank)
			s.Set(sheet.SubSkill(sheet.SkillClassSkill, key, sub), boolValue(cs))
			s.Set(sheet.SubSkill(sheet.SkillChangeBonus, key, sub), 0)
			s.Set(sheet.SubSkill(sheet.SkillMod, key, sub), 0)
		}
	}
	for _, def := range ruleset.Skills {
		declare(def.Key, def.Ability, def.ACP)
	}
	for _, key := range slices.Sorted(maps.Keys(p.c.Skills)) {
		if _, ok := ruleset.Skill(key); !ok {
			declare(key, "int", false)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// baselineArmor sums the armor check penalty of equipped gear and finds the
// tightest max Dex cap.
func (p *pass) baselineArmor() {
	var acp float64
	for _, it := range p.c.Items {
		eq, ok := it.(*item.Equipment)
		if !ok || !eq.Contributes() {
			continue
		}
		acp += float64(eq.ArmorCheckPenalty())
		if md := eq.Armor.MaxDex; md != nil {
			v := float64(*md)
			if p.maxDex == nil || v < *p.maxDex {
				p.maxDex = &v
			}
		}
	}
	p.s.Set(sheet.At(sheet.ACPGear), acp)
	p.s.Set(sheet.At(sheet.ACPEncumbrance), 0)
	p.s.Set(sheet.At(sheet.ACPTotal), acp)
	if p.maxDex != nil {
		p.s.Set(sheet.At(sheet.MaxDex), *p.maxDex)
	}
}

// baselineSpellbooks declares each spellbook with its base caster level
// and slots.
func (p *pass) baselineSpellbooks() {
	s := p.s
	for _, kind := range casterKinds {
		var cl float64
		for _, ci := range p.classes {
			if ci.prog.Type == ruleset.ClassPrestige && ci.prog.CasterKind == kind {
				cl += float64(ci.item.Level)
			}
		}
		s.Set(sheet.Of(sheet.PrestigeCL, kind), cl)
	}
	for _, key := range slices.Sorted(maps.Keys(p.c.Spellbooks)) {
		b := p.c.Spellbooks[key]
		s.DeclareSpellbook(sheet.Spellbook{Key: key, Kind: b.Kind, Ability: b.Ability})
		var cl float64
		if b.CLFormula != "" {
			cl, _ = p.evaluate(b.CLFormula, p.baseScope(), p.seed("spellbook", key), "Spellbook "+key, "cl")
		}
		switch b.Class {
		case "":
		case "_hd":
			cl += s.Get(sheet.At(sheet.HD))
		default:
			for _, ci := range p.classes {
				if ci.item.ClassID == b.Class {
					cl += float64(ci.item.Level)
				}
			}
		}
		s.Set(sheet.Of(sheet.SpellbookCL, key), cl)
		s.Set(sheet.Of(sheet.SpellbookAbilityBonus, key), 0)
		for level := 0; level <= 9; level++ {
			base := b.Slots[level]
			if base == nil {
				continue
			}
			s.Set(sheet.Slot(sheet.SpellSlotBase, key, level), *base)
			s.Set(sheet.Slot(sheet.SpellSlotChange, key, level), 0)
			s.Set(sheet.Slot(sheet.SpellSlotMax, key, level), *base)
		}
	}
}

// baselineClassFeatures evaluates the level-driven class formulas: sneak
// attack dice, turn undead dice, power points and spell resistance.
func (p *pass) baselineClassFeatures() {
	s := p.s
	var groups []string
	sneak := map[string]struct {
		formula string
		level   float64
	}{}
	var turn, power float64
	for _, ci := range p.classes {
		prog := ci.prog
		level := float64(ci.item.Level)
		if prog.SneakAttackFormula != "" {
			g := prog.SneakAttackGroup
			if g == "" {
				g = ci.item.ClassID
			}
			entry, seen := sneak[g]
			if !seen {
				groups = append(groups, g)
				entry.formula = prog.SneakAttackFormula
			}
			entry.level += level
			sneak[g] = entry
		}
		if prog.TurnUndeadFormula != "" {
			v, _ := p.evaluate(prog.TurnUndeadFormula, p.levelScope(level), p.seed("turnUndead", ci.item.ID), ci.name, "turnUndeadDiceTotal")
			turn += v
		}
		if n := len(prog.PowerPointTable); n > 0 && ci.item.Level > 0 {
			power += float64(prog.PowerPointTable[min(ci.item.Level, n)-1])
		}
	}
	var sneakDice float64
	for _, g := range groups {
		entry := sneak[g]
		v, _ := p.evaluate(entry.formula, p.levelScope(entry.level), p.seed("sneakAttack", g), "Sneak Attack ("+g+")", "sneakAttack")
		sneakDice += v
	}
	s.Set(sheet.At(sheet.SneakAttack), sneakDice)
	s.Set(sheet.At(sheet.TurnUndeadDice), turn)
	s.Set(sheet.At(sheet.TurnUndeadUses), 0)
	s.Set(sheet.At(sheet.PowerPoints), power)

	var sr float64
	if p.c.SRFormula != "" {
		sr, _ = p.evaluate(p.c.SRFormula, p.baseScope(), p.seed("sr"), "Spell Resistance", "spellResistance")
	}
	s.Set(sheet.At(sheet.SR), sr)
}

func (p *pass) baseScope() formula.Scope {
	return formula.Layered{p.s, p.ambient}
}

func (p *pass) levelScope(level float64) formula.Scope {
	return formula.Layered{formula.Values{"level": level}, p.s, p.ambient}
}

// seed pins the dice of one evaluation to the character and the given
// parts, so repeated passes over the same document roll the same numbers.
func (p *pass) seed(parts ...string) uint64 {
	return dice.SeedFor(append([]string{p.c.ID}, parts...)...)
}

// refreshAbility recomputes mod and origMod of ab, honoring the forcing
// flags.
func (p *pass) refreshAbility(ab string) {
	s := p.s
	damage := s.Get(sheet.Of(sheet.AbilityDamage, ab))
	penalty := s.Get(sheet.Of(sheet.AbilityPenalty, ab))
	user := s.Get(sheet.Of(sheet.AbilityUserPenalty, ab))
	mod := AbilityMod(s.Get(sheet.Of(sheet.AbilityTotal, ab)), damage, penalty, user)
	origMod := AbilityMod(s.Get(sheet.Of(sheet.AbilityOrigTotal, ab)), damage, penalty, user)
	if forced, ok := p.forcedTotal(ab); ok {
		s.Set(sheet.Of(sheet.AbilityTotal, ab), forced)
		mod = -5
	}
	s.Set(sheet.Of(sheet.AbilityMod, ab), mod)
	s.Set(sheet.Of(sheet.AbilityOrigMod, ab), origMod)
}

var forcingFlags = map[string]struct {
	flag  change.Flag
	total float64
}{
	"str": {change.NoStr, 0},
	"dex": {change.NoDex, 0},
	"int": {change.OneInt, 1},
	"wis": {change.OneWis, 1},
	"cha": {change.OneCha, 1},
}

func (p *pass) forcedTotal(ab string) (float64, bool) {
	f, ok := forcingFlags[ab]
	if !ok || !p.flags.Has(f.flag) {
		return 0, false
	}
	return f.total, true
}

// syncDependents recomputes the ability and BAB parts of CMB, CMD, init and
// saves from absolute values, moving each total by the part's change.
func (p *pass) syncDependents() {
	s := p.s
	mod := func(ab string) float64 { return s.Get(sheet.Of(sheet.AbilityMod, ab)) }
	str, dex := mod("str"), mod("dex")
	bab := s.Get(sheet.At(sheet.BAB))

	cmbAbility := str
	if p.size <= ruleset.Tiny {
		cmbAbility = dex
	}
	p.sync(sheet.At(sheet.CMBAbility), cmbAbility, sheet.At(sheet.CMB))
	p.sync(sheet.At(sheet.CMBBAB), bab, sheet.At(sheet.CMB))

	cmdDex := 0.0
	if dex < 0 || !p.flags.Has(change.LoseDexToAC) {
		cmdDex = dex
	}
	p.sync(sheet.At(sheet.CMDAbility), str+cmdDex, sheet.At(sheet.CMD))
	p.sync(sheet.At(sheet.CMDFlatFootedAbility), str+min(0, dex), sheet.At(sheet.CMDFlatFooted))
	p.sync(sheet.At(sheet.CMDBAB), bab, sheet.At(sheet.CMD), sheet.At(sheet.CMDFlatFooted))

	p.sync(sheet.At(sheet.InitAbility), dex, sheet.At(sheet.Init))
	for _, sv := range sheet.Saves {
		p.sync(sheet.Of(sheet.SaveAbility, sv), mod(saveAbilities[sv]), sheet.Of(sheet.SaveTotal, sv))
	}
}

// sync stores v in part and moves each total by the difference.
func (p *pass) sync(part sheet.Path, v float64, totals ...sheet.Path) {
	d := v - p.s.Get(part)
	if d == 0 {
		return
	}
	for _, t := range totals {
		p.s.Add(t, d)
	}
	p.s.Set(part, v)
}
