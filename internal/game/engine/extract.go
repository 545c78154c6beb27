package engine

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/condition"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/game/target"
)

const masterRef = "@master."

// polymorphSuppressed lists race targets ignored while shape-changed.
var polymorphSuppressed = map[string]bool{"nac": true, "str": true, "dex": true}

// extract builds the change records of the pass: one per declared change
// line of every contributing item, plus the implicit records.
func (p *pass) extract() {
	var missingMaster int
	for _, it := range p.c.Items {
		if !it.Contributes() {
			continue
		}
		b := it.Base()
		src := change.Source{Name: b.Name, Type: string(b.Type), ItemID: b.ID}
		switch v := it.(type) {
		case *item.Feat:
			src.Subtype = v.FeatType
		case *item.Buff:
			src.Subtype = v.BuffType
		case *item.Equipment:
			src.Subtype = v.EquipmentType
		case *item.Class:
			src.Subtype = v.ClassID
		case *item.Race:
			src.Subtype = v.RaceID
		}
		if fv := it.FormulaValues(); len(fv) > 0 && b.ID != "" {
			vals := make(map[string]float64, len(fv))
			for k, v := range fv {
				vals["item."+k] = v
			}
			p.itemValues[b.ID] = vals
		}

		specs := b.Changes
		if _, ok := it.(*item.Race); ok && p.race != nil {
			specs = append(slices.Clone(p.race.Changes), specs...)
		}
		for _, sp := range specs {
			if p.master == nil && strings.Contains(sp.Formula, masterRef) {
				missingMaster++
				continue
			}
			p.addSpec(sp, src)
		}
		if eq, ok := it.(*item.Equipment); ok {
			p.armorRecords(eq, src)
		}
	}
	if missingMaster > 0 {
		p.dropped += missingMaster
		err := &MissingDependencyError{Dependency: "master", Records: missingMaster}
		p.warn(warningFor(err, "", ""))
		p.e.logger.Warn("changes reference a missing master",
			zap.String("character", p.c.ID), zap.Int("records", missingMaster))
	}

	p.healthRecords()
	p.abilityRecords()
	p.speedSkillRecords()
	p.sizeRecords()
	p.conditionRecords()
	p.energyDrainRecords()
	p.synergyRecords()
}

// addSpec parses sp into a record, applying the edge policies.
func (p *pass) addSpec(sp change.Spec, src change.Source) {
	if strings.TrimSpace(sp.Formula) == "" {
		return
	}
	bt, err := change.ParseBonusType(sp.Type)
	if err != nil {
		p.unresolved(&target.UnresolvedTargetError{Target: sp.Target}, src.Name, sp.Target)
		return
	}
	p.add(change.Record{Formula: sp.Formula, Target: sp.Target, Type: bt, Source: src})
}

// add appends r unless an edge policy drops it.
func (p *pass) add(r change.Record) {
	if _, ok := target.Lookup(r.Target); !ok {
		p.unresolved(&target.UnresolvedTargetError{Target: r.Target}, r.Source.Name, r.Target)
		return
	}
	r.Target = target.Canonical(r.Target)
	if p.polymorphed && r.Source.Type == string(item.KindRace) &&
		(polymorphSuppressed[r.Target] || target.IsSpeed(r.Target)) {
		p.e.logger.Debug("race change suppressed while polymorphed",
			zap.String("character", p.c.ID), zap.Stringer("record", r))
		return
	}
	if r.Type == change.Dodge && p.flags.Has(change.LoseDexToAC) {
		return
	}
	p.records = append(p.records, r)
}

func (p *pass) unresolved(err error, source, tgt string) {
	p.warn(warningFor(err, source, tgt))
	p.e.logger.Debug("unresolved change target",
		zap.String("character", p.c.ID),
		zap.String("source", source),
		zap.String("target", tgt),
	)
}

func literal(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func implicit(name, kind, tgt string, bt change.BonusType, formula string) change.Record {
	return change.Record{Formula: formula, Target: tgt, Type: bt, Source: change.Source{Name: name, Type: kind}}
}

// armorRecords emits the armor or shield bonus and its enhancement.
func (p *pass) armorRecords(eq *item.Equipment, src change.Source) {
	tgt := "aac"
	if eq.IsShield() {
		tgt = "sac"
	}
	if eq.Armor.Value != 0 {
		p.add(change.Record{Formula: strconv.Itoa(eq.Armor.Value), Target: tgt, Type: change.Base, Source: src})
	}
	if eq.Armor.Enh != 0 {
		p.add(change.Record{Formula: strconv.Itoa(eq.Armor.Enh), Target: tgt, Type: change.Enhancement, Source: src})
	}
}

func (p *pass) hitDice(t ruleset.ClassType) HitDice {
	switch {
	case t == ruleset.ClassRacial:
		return p.e.cfg.Health.Racial
	case p.c.Kind == character.KindNPC:
		return p.e.cfg.Health.NPC
	default:
		return p.e.cfg.Health.PC
	}
}

// healthRecords emits the hit points of each class to mhp and vigor.
func (p *pass) healthRecords() {
	h := p.e.cfg.Health
	round := func(v float64) float64 {
		if h.Continuous {
			return v
		}
		return h.Rounding.Apply(v)
	}
	// Maximized levels are shared across classes of the same hit dice group.
	used := map[bool]int{}
	for _, ci := range p.classes {
		if ci.prog.Type == ruleset.ClassTemplate || ci.item.Level <= 0 {
			continue
		}
		cfg := p.hitDice(ci.prog.Type)
		racial := ci.prog.Type == ruleset.ClassRacial
		level := ci.item.Level
		var hp float64
		if !cfg.Auto {
			hp = ci.item.HP
		} else {
			die := float64(ci.prog.HitDie)
			maxed := min(level, max(0, cfg.Maximized-used[racial]))
			used[racial] += maxed
			hp = float64(maxed)*die + float64(level-maxed)*round(1+(die-1)*cfg.Rate)
		}
		if ci.prog.Type == ruleset.ClassBase {
			hp += ci.item.FavoredClassHP
		}
		hp = round(hp)
		if hp == 0 {
			continue
		}
		src := change.Source{Name: ci.name, Type: string(item.KindClass), Subtype: ci.item.ClassID, ItemID: ci.item.ID}
		for _, tgt := range []string{"mhp", "vigor"} {
			p.add(change.Record{Formula: literal(hp), Target: tgt, Type: change.Untyped, Source: src})
		}
	}
}

// abilityRecords emits the Constitution hit points, wounds and natural
// armor.
func (p *pass) abilityRecords() {
	p.add(implicit("Constitution", "ability", "mhp", change.Base,
		"@abilities.con.origMod * @attributes.hd.total"))
	p.add(implicit("Constitution", "ability", "wounds", change.Base,
		"2 * (@abilities.con.origTotal + @abilities.con.drain)"))
	if p.c.NaturalAC != 0 {
		p.add(implicit("Natural Armor", "ability", "nac", change.Base, strconv.Itoa(p.c.NaturalAC)))
	}
}

// speedSkillRecords emits the fly maneuverability and climb/swim racial
// skill bonuses.
func (p *pass) speedSkillRecords() {
	if fly, ok := p.c.Speeds["fly"]; ok && fly.Maneuverability != "" {
		if mod := ruleset.FlyManeuverability[fly.Maneuverability]; mod != 0 && p.hasSkill("fly") {
			p.add(implicit("Fly Maneuverability", "speed", "skill.fly", change.Untyped, strconv.Itoa(mod)))
		}
	}
	for _, m := range []struct{ mode, skill, name string }{
		{"climb", "clm", "Climb Speed"},
		{"swim", "swm", "Swim Speed"},
	} {
		if p.c.Speeds[m.mode].Base > 0 && p.hasSkill(m.skill) {
			p.add(implicit(m.name, "speed", "skill."+m.skill, change.Racial, "8"))
		}
	}
}

func (p *pass) hasSkill(key string) bool {
	_, ok := p.s.Skill(key)
	return ok
}

// sizeRecords emits the size modifiers of a non-medium creature.
func (p *pass) sizeRecords() {
	if p.size == ruleset.Medium {
		return
	}
	name := "Size (" + p.size.String() + ")"
	p.add(implicit(name, "size", "ac", change.Size, strconv.Itoa(p.size.ACMod())))
	if p.hasSkill("hid") {
		p.add(implicit(name, "size", "skill.hid", change.Size, strconv.Itoa(p.size.StealthMod())))
	}
	if p.hasSkill("fly") {
		p.add(implicit(name, "size", "skill.fly", change.Size, strconv.Itoa(p.size.FlyMod())))
	}
	special := strconv.Itoa(p.size.SpecialMod())
	p.add(implicit(name, "size", "cmb", change.Size, special))
	p.add(implicit(name, "size", "cmd", change.Size, special))
}

func (p *pass) conditionRecords() {
	records, bad := condition.Records(p.conds)
	for _, sp := range bad {
		p.unresolved(&target.UnresolvedTargetError{Target: sp.Target}, "condition", sp.Target)
	}
	for _, r := range records {
		p.add(r)
	}
}

func (p *pass) energyDrainRecords() {
	if p.c.EnergyDrain == 0 {
		return
	}
	for _, tgt := range []string{"mhp", "vigor"} {
		p.add(implicit("Energy Drain", "energyDrain", tgt, change.Untyped, "-(@attributes.energyDrain * 5)"))
	}
}

// synergyRecords grants the synergy bonus of every skill with enough ranks.
func (p *pass) synergyRecords() {
	for _, from := range slices.Sorted(maps.Keys(ruleset.Synergies)) {
		if p.c.Skills[from].Rank < ruleset.SynergyRanks {
			continue
		}
		name := "Synergy"
		if def, ok := ruleset.Skill(from); ok {
			name = "Synergy (" + def.Name + ")"
		}
		for _, to := range ruleset.Synergies[from] {
			if p.hasSkill(to) {
				p.add(implicit(name, "synergy", "skill."+to, change.Untyped, strconv.Itoa(ruleset.SynergyBonus)))
			}
		}
	}
}
