package engine

import (
	"math"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

var abilityNames = map[string]string{
	"str": "Strength", "dex": "Dexterity", "con": "Constitution",
	"int": "Intelligence", "wis": "Wisdom", "cha": "Charisma",
}

// finalize runs the corrections that depend on the fully applied sheet.
func (p *pass) finalize() {
	s := p.s
	for _, ab := range sheet.Abilities {
		p.refreshAbility(ab)
		s.Add(sheet.Of(sheet.AbilityCheckMod, ab), s.Get(sheet.Of(sheet.AbilityMod, ab)))
	}
	p.syncDependents()

	load := p.encumbrance()
	p.armorLimits()
	p.reduceSpeeds(load)
	p.dexToAC()
	p.skills()
	p.spellSlots()
	p.turnUndead()
	p.powerPoints()
	p.health()
	p.dependentDetails()
}

// encumbrance sets the carrying thresholds and the load penalties. It
// returns the load category that applies to speed.
func (p *pass) encumbrance() int {
	s := p.s
	raw := p.c.Abilities["str"]
	str := s.Get(sheet.Of(sheet.AbilityTotal, "str")) + float64(raw.CarryBonus)
	capacity := ruleset.CarryCapacity(int(str), p.size, p.c.Quadruped, p.e.cfg.Metric)
	if m := raw.CarryMultiplier; m > 0 && m != 1 {
		capacity = ruleset.Capacity{
			Light:  math.Floor(capacity.Light * m),
			Medium: math.Floor(capacity.Medium * m),
			Heavy:  math.Floor(capacity.Heavy * m),
		}
	}
	weight := ruleset.CoinWeight(p.c.Currency.Coins())
	for _, it := range p.c.Items {
		weight += it.Base().CarriedWeight()
	}
	s.Set(sheet.At(sheet.CarryLight), capacity.Light)
	s.Set(sheet.At(sheet.CarryMedium), capacity.Medium)
	s.Set(sheet.At(sheet.CarryHeavy), capacity.Heavy)
	s.Set(sheet.At(sheet.CarriedWeight), weight)

	load := ruleset.LoadLight
	if !p.flags.Has(change.NoEncumbrance) {
		load = capacity.Load(weight)
	}
	s.Set(sheet.At(sheet.EncumbranceLevel), float64(load))
	if acp, maxDex, ok := ruleset.LoadPenalties(load); ok {
		s.Set(sheet.At(sheet.ACPEncumbrance), float64(acp))
		md := float64(maxDex)
		if p.maxDex == nil || md < *p.maxDex {
			p.maxDex = &md
		}
		p.details.Add(sheet.At(sheet.ACPEncumbrance).String(), sheet.SourceDetail{Name: "Encumbrance", Value: float64(acp)})
	}
	return load
}

// armorLimits merges gear and load penalties.
func (p *pass) armorLimits() {
	s := p.s
	s.Set(sheet.At(sheet.ACPTotal), max(s.Get(sheet.At(sheet.ACPGear)), s.Get(sheet.At(sheet.ACPEncumbrance))))
	if p.maxDex != nil {
		s.Set(sheet.At(sheet.MaxDex), *p.maxDex)
	}
}

// heaviestArmor returns the heaviest weight class of equipped armor.
func (p *pass) heaviestArmor() string {
	heaviest := ""
	for _, it := range p.c.Items {
		eq, ok := it.(*item.Equipment)
		if !ok || !eq.Contributes() || eq.IsShield() {
			continue
		}
		switch eq.Armor.Weight {
		case item.ArmorHeavy:
			heaviest = item.ArmorHeavy
		case item.ArmorMedium:
			if heaviest != item.ArmorHeavy {
				heaviest = item.ArmorMedium
			}
		}
	}
	return heaviest
}

// reduceSpeeds applies the encumbered speed table when the load or the
// worn armor slows the character.
func (p *pass) reduceSpeeds(load int) {
	reason := ""
	if load >= ruleset.LoadMedium {
		reason = "Encumbrance"
	}
	heavyFull := p.flags.Has(change.HeavyArmorFullSpeed) || p.e.cfg.House.HeavyArmorFullSpeed
	switch p.heaviestArmor() {
	case item.ArmorHeavy:
		if !heavyFull && reason == "" {
			reason = "Heavy Armor"
		}
	case item.ArmorMedium:
		if !heavyFull && !p.flags.Has(change.MediumArmorFullSpeed) && reason == "" {
			reason = "Medium Armor"
		}
	}
	if reason == "" {
		return
	}
	for _, mode := range sheet.Speeds {
		path := sheet.Of(sheet.SpeedTotal, mode)
		v := p.s.Get(path)
		if v <= 0 {
			continue
		}
		r := ruleset.ReducedSpeed(v, p.e.cfg.Metric)
		p.s.Set(path, r)
		p.details.Add(path.String(), sheet.SourceDetail{Name: reason, Value: r - v})
	}
}

// dexToAC adds the capped Dexterity modifier to armor class.
func (p *pass) dexToAC() {
	s := p.s
	dex := s.Get(sheet.Of(sheet.AbilityMod, "dex"))
	if p.maxDex != nil {
		dex = min(dex, *p.maxDex)
	}
	if dex == 0 {
		return
	}
	lose := p.flags.Has(change.LoseDexToAC)
	add := func(a sheet.Attr) {
		s.Add(sheet.At(a), dex)
		p.details.Add(sheet.At(a).String(), sheet.SourceDetail{Name: abilityNames["dex"], Value: dex})
	}
	if !lose || dex < 0 {
		add(sheet.ACNormal)
		add(sheet.ACTouch)
	}
	if dex < 0 || (p.flags.Has(change.UncannyDodge) && !lose) {
		add(sheet.ACFlatFooted)
	}
}

// SkillModifier is the final skill bonus: full ranks for a trained class
// skill, half ranks otherwise.
func SkillModifier(rank float64, classSkill bool, abilityMod, changeBonus, acp, energyDrain float64) float64 {
	r := rank / 2
	if classSkill && rank > 0 {
		r = rank
	}
	return math.Floor(r + abilityMod + changeBonus - acp - math.Abs(energyDrain))
}

func (p *pass) skills() {
	s := p.s
	acp := s.Get(sheet.At(sheet.ACPTotal))
	ed := s.Get(sheet.At(sheet.EnergyDrain))
	for _, sk := range s.Skills() {
		skillACP := 0.0
		if sk.ACP {
			skillACP = acp
		}
		s.Set(sheet.Of(sheet.SkillMod, sk.Key), SkillModifier(
			s.Get(sheet.Of(sheet.SkillRank, sk.Key)),
			s.Get(sheet.Of(sheet.SkillClassSkill, sk.Key)) > 0,
			s.Get(sheet.Of(sheet.AbilityMod, sk.Ability)),
			s.Get(sheet.Of(sheet.SkillChangeBonus, sk.Key)),
			skillACP, ed,
		))
		raw := p.c.Skills[sk.Key]
		for _, sub := range sk.SubSkills {
			ability := sk.Ability
			if a := raw.SubSkills[sub].Ability; a != "" {
				ability = a
			}
			s.Set(sheet.SubSkill(sheet.SkillMod, sk.Key, sub), SkillModifier(
				s.Get(sheet.SubSkill(sheet.SkillRank, sk.Key, sub)),
				s.Get(sheet.SubSkill(sheet.SkillClassSkill, sk.Key, sub)) > 0,
				s.Get(sheet.Of(sheet.AbilityMod, ability)),
				s.Get(sheet.SubSkill(sheet.SkillChangeBonus, sk.Key, sub)),
				skillACP, ed,
			))
		}
	}
}

// spellSlots adds the prestige caster level and computes slot maximums.
func (p *pass) spellSlots() {
	s := p.s
	for _, b := range s.Spellbooks() {
		if b.Kind != "" {
			s.Add(sheet.Of(sheet.SpellbookCL, b.Key), s.Get(sheet.Of(sheet.PrestigeCL, b.Kind)))
		}
		mod := s.Get(sheet.Of(sheet.AbilityMod, b.Ability)) + s.Get(sheet.Of(sheet.SpellbookAbilityBonus, b.Key))
		auto := p.c.Spellbooks[b.Key].AutoSpellLevels
		for level := 0; level <= 9; level++ {
			base := sheet.Slot(sheet.SpellSlotBase, b.Key, level)
			if !s.Has(base) {
				continue
			}
			v := s.Get(base) + s.Get(sheet.Slot(sheet.SpellSlotChange, b.Key, level))
			if auto {
				v += float64(ruleset.SpellSlotBonus(int(mod), level))
			}
			s.Set(sheet.Slot(sheet.SpellSlotMax, b.Key, level), v)
		}
	}
}

// turnUndead sets the daily uses for characters with turning dice.
func (p *pass) turnUndead() {
	s := p.s
	if s.Get(sheet.At(sheet.TurnUndeadDice)) <= 0 {
		return
	}
	cha := s.Get(sheet.Of(sheet.AbilityMod, "cha"))
	s.Add(sheet.At(sheet.TurnUndeadUses), 3+cha)
	p.details.Add(sheet.At(sheet.TurnUndeadUses).String(), sheet.SourceDetail{Name: "Base", Value: 3})
	p.details.Add(sheet.At(sheet.TurnUndeadUses).String(), sheet.SourceDetail{Name: abilityNames["cha"], Value: cha})
}

// powerPoints adds the ability bonus points of each manifesting class.
func (p *pass) powerPoints() {
	for _, ci := range p.classes {
		if len(ci.prog.PowerPointTable) == 0 {
			continue
		}
		ab := ci.prog.PowerPointAbility
		if ab == "" {
			ab = "int"
		}
		mod := p.s.Get(sheet.Of(sheet.AbilityMod, ab))
		bonus := max(0, math.Ceil(.5*float64(ci.item.Level)*mod))
		if bonus == 0 {
			continue
		}
		p.s.Add(sheet.At(sheet.PowerPoints), bonus)
		p.details.Add(sheet.At(sheet.PowerPoints).String(), sheet.SourceDetail{Name: abilityNames[ab], Value: bonus})
	}
}

// health rounds continuous hit points.
func (p *pass) health() {
	h := p.e.cfg.Health
	if !h.Continuous {
		return
	}
	for _, a := range []sheet.Attr{sheet.HPMax, sheet.VigorMax} {
		p.s.Set(sheet.At(a), h.Rounding.Apply(p.s.Get(sheet.At(a))))
	}
}

// hpValue moves current hit points by the change in maximum, clamped to the
// new maximum. A shape-changed character keeps its current hit points.
func (p *pass) hpValue() float64 {
	next := p.s.Get(sheet.At(sheet.HPMax))
	prev := p.c.HP.Max
	cur := p.c.HP.Value
	switch {
	case p.polymorphed:
		return cur
	case prev == 0 && cur == 0:
		return next
	default:
		return min(cur+next-prev, next)
	}
}

// dependentDetails records the synced parts of the tracked dependents.
func (p *pass) dependentDetails() {
	s := p.s
	add := func(total sheet.Path, name string, part sheet.Path) {
		if v := s.Get(part); v != 0 {
			p.details.Add(total.String(), sheet.SourceDetail{Name: name, Value: v})
		}
	}
	cmbAbility := "str"
	if p.size <= ruleset.Tiny {
		cmbAbility = "dex"
	}
	add(sheet.At(sheet.CMB), "Base Attack Bonus", sheet.At(sheet.CMBBAB))
	add(sheet.At(sheet.CMB), abilityNames[cmbAbility], sheet.At(sheet.CMBAbility))
	add(sheet.At(sheet.CMD), "Base Attack Bonus", sheet.At(sheet.CMDBAB))
	add(sheet.At(sheet.CMD), "Abilities", sheet.At(sheet.CMDAbility))
	add(sheet.At(sheet.CMDFlatFooted), "Base Attack Bonus", sheet.At(sheet.CMDBAB))
	add(sheet.At(sheet.CMDFlatFooted), "Abilities", sheet.At(sheet.CMDFlatFootedAbility))
	add(sheet.At(sheet.Init), abilityNames["dex"], sheet.At(sheet.InitAbility))
	for _, sv := range sheet.Saves {
		total := sheet.Of(sheet.SaveTotal, sv)
		add(total, "Base", sheet.Of(sheet.SaveBase, sv))
		add(total, abilityNames[saveAbilities[sv]], sheet.Of(sheet.SaveAbility, sv))
	}
	if ed := s.Get(sheet.At(sheet.EnergyDrain)); ed != 0 {
		for _, a := range []sheet.Attr{sheet.CMB, sheet.CMD, sheet.CMDFlatFooted} {
			p.details.Add(sheet.At(a).String(), sheet.SourceDetail{Name: "Energy Drain", Value: -ed})
		}
	}
}
