package ruleset

// SkillDef is the static definition of a skill.
type SkillDef struct {
	Key     string
	Name    string
	Ability string
	ACP     bool
	// Specialized skills (craft, perform, profession) carry sub-skills.
	Specialized bool
}

// Skills lists every skill in display order.
var Skills = []SkillDef{
	{Key: "apr", Name: "Appraise", Ability: "int"},
	{Key: "blc", Name: "Balance", Ability: "dex", ACP: true},
	{Key: "blf", Name: "Bluff", Ability: "cha"},
	{Key: "clm", Name: "Climb", Ability: "str", ACP: true},
	{Key: "coc", Name: "Concentration", Ability: "con"},
	{Key: "crf", Name: "Craft", Ability: "int", Specialized: true},
	{Key: "dsc", Name: "Decipher Script", Ability: "int"},
	{Key: "dip", Name: "Diplomacy", Ability: "cha"},
	{Key: "dev", Name: "Disable Device", Ability: "int"},
	{Key: "dis", Name: "Disguise", Ability: "cha"},
	{Key: "esc", Name: "Escape Artist", Ability: "dex", ACP: true},
	{Key: "fog", Name: "Forgery", Ability: "int"},
	{Key: "gif", Name: "Gather Information", Ability: "cha"},
	{Key: "han", Name: "Handle Animal", Ability: "cha"},
	{Key: "hea", Name: "Heal", Ability: "wis"},
	{Key: "hid", Name: "Hide", Ability: "dex", ACP: true},
	{Key: "int", Name: "Intimidate", Ability: "cha"},
	{Key: "jmp", Name: "Jump", Ability: "str", ACP: true},
	{Key: "kar", Name: "Knowledge (Arcana)", Ability: "int"},
	{Key: "kdu", Name: "Knowledge (Dungeoneering)", Ability: "int"},
	{Key: "ken", Name: "Knowledge (Engineering)", Ability: "int"},
	{Key: "kge", Name: "Knowledge (Geography)", Ability: "int"},
	{Key: "khi", Name: "Knowledge (History)", Ability: "int"},
	{Key: "klo", Name: "Knowledge (Local)", Ability: "int"},
	{Key: "kna", Name: "Knowledge (Nature)", Ability: "int"},
	{Key: "kno", Name: "Knowledge (Nobility)", Ability: "int"},
	{Key: "kpl", Name: "Knowledge (Planes)", Ability: "int"},
	{Key: "kre", Name: "Knowledge (Religion)", Ability: "int"},
	{Key: "kps", Name: "Knowledge (Psionics)", Ability: "int"},
	{Key: "lis", Name: "Listen", Ability: "wis"},
	{Key: "mos", Name: "Move Silently", Ability: "dex", ACP: true},
	{Key: "opl", Name: "Open Lock", Ability: "dex"},
	{Key: "prf", Name: "Perform", Ability: "cha", Specialized: true},
	{Key: "pro", Name: "Profession", Ability: "wis", Specialized: true},
	{Key: "rid", Name: "Ride", Ability: "dex"},
	{Key: "src", Name: "Search", Ability: "int"},
	{Key: "sen", Name: "Sense Motive", Ability: "wis"},
	{Key: "slt", Name: "Sleight of Hand", Ability: "dex", ACP: true},
	{Key: "spl", Name: "Spellcraft", Ability: "int"},
	{Key: "spt", Name: "Spot", Ability: "wis"},
	{Key: "sur", Name: "Survival", Ability: "wis"},
	{Key: "swm", Name: "Swim", Ability: "str", ACP: true},
	{Key: "tmb", Name: "Tumble", Ability: "dex", ACP: true},
	{Key: "umd", Name: "Use Magic Device", Ability: "cha"},
	{Key: "uro", Name: "Use Rope", Ability: "dex"},
	{Key: "aut", Name: "Autohypnosis", Ability: "wis"},
	{Key: "psi", Name: "Psicraft", Ability: "int"},
	{Key: "upd", Name: "Use Psionic Device", Ability: "cha"},
}

var skillIndex = func() map[string]int {
	m := make(map[string]int, len(Skills))
	for i, s := range Skills {
		m[s.Key] = i
	}
	return m
}()

// Skill returns the definition for key.
func Skill(key string) (SkillDef, bool) {
	i, ok := skillIndex[key]
	if !ok {
		return SkillDef{}, false
	}
	return Skills[i], true
}

// SynergyRanks is the rank threshold at which a skill grants its synergies.
const SynergyRanks = 5

// SynergyBonus is the untyped bonus granted to each synergy target.
const SynergyBonus = 2

// Synergies maps a source skill to the skills it aids. Only unconditional
// synergies are listed.
var Synergies = map[string][]string{
	"blf": {"dip", "int", "slt"},
	"esc": {"uro"},
	"han": {"rid"},
	"jmp": {"tmb"},
	"kar": {"spl"},
	"klo": {"gif"},
	"kna": {"sur"},
	"kno": {"dip"},
	"sen": {"dip"},
	"tmb": {"blc", "jmp"},
	"uro": {"clm", "esc"},
}
