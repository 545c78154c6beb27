package target

import (
	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

type pathFunc func(t change.BonusType, s *sheet.Sheet) []sheet.Path

func fixed(paths ...sheet.Path) pathFunc {
	return func(change.BonusType, *sheet.Sheet) []sheet.Path { return paths }
}

var (
	table = map[string]Spec{}
	order []string

	// Ranks of the dynamic targets, after their static siblings.
	skillRank int
	spellRank int
)

func add(name string, c Category, paths pathFunc, masks ...string) {
	if _, dup := table[name]; dup {
		panic("target: duplicate target " + name)
	}
	table[name] = Spec{Name: name, Category: c, Rank: len(order), Masks: masks, paths: paths}
	order = append(order, name)
}

var knowledgeSkills = map[string]bool{
	"kar": true, "kdu": true, "ken": true, "kge": true, "khi": true, "klo": true,
	"kna": true, "kno": true, "kpl": true, "kre": true, "kps": true,
}

var speedTargets = map[string]string{
	"landSpeed":   "land",
	"climbSpeed":  "climb",
	"swimSpeed":   "swim",
	"burrowSpeed": "burrow",
	"flySpeed":    "fly",
}

func init() {
	for _, ab := range sheet.Abilities {
		add(ab, CategoryAbility, abilityPaths(ab), "abilities."+ab)
	}

	add("mhp", CategoryMisc, fixed(sheet.At(sheet.HPMax)), "attributes.hp")
	add("wounds", CategoryMisc, fixed(sheet.At(sheet.WoundsMax)), "attributes.wounds")
	add("vigor", CategoryMisc, fixed(sheet.At(sheet.VigorMax)), "attributes.vigor")
	add("allSpeeds", CategoryMisc, allSpeeds, "attributes.speed")
	for _, name := range []string{"landSpeed", "climbSpeed", "swimSpeed", "burrowSpeed", "flySpeed"} {
		add(name, CategoryMisc, speedPaths(speedTargets[name]), "attributes.speed."+speedTargets[name])
	}
	add("allChecks", CategoryMisc, checkPaths(sheet.Abilities...))
	for _, ab := range sheet.Abilities {
		add(ab+"Checks", CategoryMisc, checkPaths(ab))
	}
	for _, key := range []string{"regen", "fastHeal", "fortification", "asf", "concealment", "cr"} {
		add(key, CategoryMisc, fixed(sheet.Of(sheet.Misc, key)), "attributes."+key)
	}

	add("ac", CategoryAC, acPaths, "attributes.ac")
	for _, name := range []string{"aac", "sac", "nac"} {
		add(name, CategoryAC, fixed(sheet.At(sheet.ACNormal), sheet.At(sheet.ACFlatFooted)), "attributes.ac")
	}
	add("tch", CategoryAC, fixed(sheet.At(sheet.ACTouch)), "attributes.ac")
	add("pac", CategoryAC, fixed(sheet.At(sheet.ACNormal)), "attributes.ac")

	add("bab", CategoryAttack, babPaths, "attributes.bab")
	add("babattack", CategoryAttack, babPaths, "attributes.bab")
	add("attack", CategoryAttack, fixed(sheet.At(sheet.AttackGeneral)), "attributes.attack")
	add("mattack", CategoryAttack, fixed(sheet.At(sheet.AttackMelee)), "attributes.attack")
	add("rattack", CategoryAttack, fixed(sheet.At(sheet.AttackRanged)), "attributes.attack")

	add("damage", CategoryDamage, fixed(sheet.At(sheet.DamageGeneral)), "attributes.damage")
	add("wdamage", CategoryDamage, fixed(sheet.At(sheet.DamageWeapon)), "attributes.damage")
	add("sdamage", CategoryDamage, fixed(sheet.At(sheet.DamageSpell)), "attributes.damage")

	add("allSavingThrows", CategorySave, savePaths(sheet.Saves...), "attributes.savingThrows")
	for _, sv := range sheet.Saves {
		add(sv, CategorySave, savePaths(sv), "attributes.savingThrows."+sv)
	}

	add("skills", CategorySkill, skillPaths(func(sheet.Skill) bool { return true }), "skills")
	for _, ab := range sheet.Abilities {
		add(ab+"Skills", CategorySkill, skillPaths(func(sk sheet.Skill) bool { return sk.Ability == ab }), "skills")
	}
	add("perfSkills", CategorySkill, skillPaths(func(sk sheet.Skill) bool { return sk.Key == "prf" }), "skills")
	add("craftSkills", CategorySkill, skillPaths(func(sk sheet.Skill) bool { return sk.Key == "crf" }), "skills")
	add("profSkills", CategorySkill, skillPaths(func(sk sheet.Skill) bool { return sk.Key == "pro" }), "skills")
	add("knowSkills", CategorySkill, skillPaths(func(sk sheet.Skill) bool { return knowledgeSkills[sk.Key] }), "skills")
	skillRank = len(order)
	order = append(order, "skill.*")

	add("cmb", CategoryCombat, fixed(sheet.At(sheet.CMB)), "attributes.cmb")
	add("cmd", CategoryCombat, fixed(sheet.At(sheet.CMD), sheet.At(sheet.CMDFlatFooted)), "attributes.cmd")
	add("init", CategoryCombat, fixed(sheet.At(sheet.Init)), "attributes.init")

	for _, kind := range []string{"arcane", "divine", "psionic", "card"} {
		add(kind+"Cl", CategoryLate, fixed(sheet.Of(sheet.PrestigeCL, kind)), "attributes.prestigeCl."+kind)
	}
	for _, b := range []struct{ name, book string }{
		{"scaPrimary", "primary"},
		{"scaSecondary", "secondary"},
		{"scaTetriary", "tertiary"},
		{"scaSpelllike", "spelllike"},
	} {
		add(b.name, CategoryLate, spellbookPaths(b.book))
	}
	add("spellResistance", CategoryLate, fixed(sheet.At(sheet.SR)), "attributes.sr")
	add("powerPoints", CategoryLate, fixed(sheet.At(sheet.PowerPoints)), "attributes.powerPointsTotal")
	add("turnUndead", CategoryLate, fixed(sheet.At(sheet.TurnUndeadUses)), "attributes.turnUndeadUsesTotal")
	add("turnUndeadDiceTotal", CategoryLate, fixed(sheet.At(sheet.TurnUndeadDice)), "attributes.turnUndeadHdTotal")
	add("sneakAttack", CategoryLate, fixed(sheet.At(sheet.SneakAttack)), "attributes.sneakAttackDiceTotal")
	spellRank = len(order)
	order = append(order, "spells.*")
}

func abilityPaths(ab string) pathFunc {
	return func(t change.BonusType, _ *sheet.Sheet) []sheet.Path {
		switch t {
		case change.Penalty:
			return []sheet.Path{sheet.Of(sheet.AbilityPenalty, ab)}
		case change.Replace:
			return []sheet.Path{sheet.Of(sheet.AbilityReplace, ab)}
		default:
			return []sheet.Path{sheet.Of(sheet.AbilityTotal, ab)}
		}
	}
}

func checkPaths(abilities ...string) pathFunc {
	paths := make([]sheet.Path, len(abilities))
	for i, ab := range abilities {
		paths[i] = sheet.Of(sheet.AbilityCheckMod, ab)
	}
	return fixed(paths...)
}

func speedPaths(mode string) pathFunc {
	return func(t change.BonusType, _ *sheet.Sheet) []sheet.Path {
		if t == change.Replace {
			return []sheet.Path{sheet.Of(sheet.SpeedReplace, mode)}
		}
		return []sheet.Path{sheet.Of(sheet.SpeedTotal, mode)}
	}
}

func allSpeeds(t change.BonusType, s *sheet.Sheet) []sheet.Path {
	var out []sheet.Path
	for _, mode := range sheet.Speeds {
		if s.Get(sheet.Of(sheet.SpeedBase, mode)) > 0 {
			out = append(out, speedPaths(mode)(t, s)...)
		}
	}
	return out
}

func acPaths(t change.BonusType, _ *sheet.Sheet) []sheet.Path {
	switch t {
	case change.Dodge:
		return []sheet.Path{sheet.At(sheet.ACNormal), sheet.At(sheet.ACTouch), sheet.At(sheet.CMD)}
	case change.Deflection:
		return []sheet.Path{
			sheet.At(sheet.ACNormal), sheet.At(sheet.ACTouch), sheet.At(sheet.ACFlatFooted),
			sheet.At(sheet.CMD), sheet.At(sheet.CMDFlatFooted),
		}
	default:
		return []sheet.Path{sheet.At(sheet.ACNormal), sheet.At(sheet.ACTouch), sheet.At(sheet.ACFlatFooted)}
	}
}

func babPaths(t change.BonusType, _ *sheet.Sheet) []sheet.Path {
	if t == change.Replace {
		return []sheet.Path{sheet.At(sheet.BABReplace)}
	}
	return []sheet.Path{sheet.At(sheet.BAB)}
}

func savePaths(saves ...string) pathFunc {
	paths := make([]sheet.Path, len(saves))
	for i, sv := range saves {
		paths[i] = sheet.Of(sheet.SaveTotal, sv)
	}
	return fixed(paths...)
}

func skillPaths(match func(sheet.Skill) bool) pathFunc {
	return func(_ change.BonusType, s *sheet.Sheet) []sheet.Path {
		var out []sheet.Path
		for _, sk := range s.Skills() {
			if !match(sk) {
				continue
			}
			out = append(out, sheet.Of(sheet.SkillChangeBonus, sk.Key))
			for _, sub := range sk.SubSkills {
				out = append(out, sheet.SubSkill(sheet.SkillChangeBonus, sk.Key, sub))
			}
		}
		return out
	}
}

func spellbookPaths(book string) pathFunc {
	return func(_ change.BonusType, s *sheet.Sheet) []sheet.Path {
		if _, ok := s.Spellbook(book); !ok {
			return nil
		}
		return []sheet.Path{sheet.Of(sheet.SpellbookAbilityBonus, book)}
	}
}

// IsSpeed reports whether target is one of the movement speed targets.
func IsSpeed(target string) bool {
	_, ok := speedTargets[target]
	return ok || target == "allSpeeds"
}

// aliases maps targets onto the target whose run applies them. Records for
// an alias share that run, so a replace governs every contribution to the
// same paths.
var aliases = map[string]string{"babattack": "bab"}

// Canonical returns the target that records for target are applied under.
func Canonical(target string) string {
	if c, ok := aliases[target]; ok {
		return c
	}
	return target
}

// IsAbility reports whether target is one of the six ability targets.
func IsAbility(target string) bool {
	for _, ab := range sheet.Abilities {
		if target == ab {
			return true
		}
	}
	return false
}
