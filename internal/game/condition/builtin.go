package condition

import "github.com/cory-johannsen/d20sheet/internal/game/change"

func pen(formula, target string) change.Spec {
	return change.Spec{Formula: formula, Target: target, Type: string(change.Penalty)}
}

var loseDexNotes = []Note{
	{Path: "attributes.ac.normal.total", Text: "Lose Dex to AC"},
	{Path: "attributes.ac.touch.total", Text: "Lose Dex to AC"},
	{Path: "attributes.cmd.total", Text: "Lose Dex to AC"},
	{Path: "attributes.cmd.flatFootedTotal", Text: "Lose Dex to AC"},
}

func fear(id, name string) *ConditionDef {
	return &ConditionDef{
		ID:   id,
		Name: name,
		Changes: []change.Spec{
			pen("-2", "attack"), pen("-2", "allSavingThrows"), pen("-2", "skills"), pen("-2", "allChecks"),
		},
	}
}

// Builtin returns a Registry holding the standard conditions.
func Builtin() *Registry {
	r := NewRegistry()
	for _, d := range []*ConditionDef{
		{ID: "blinded", Name: "Blinded", Changes: []change.Spec{pen("-2", "ac")}, Flags: []change.Flag{change.LoseDexToAC}, Notes: loseDexNotes},
		{ID: "dazzled", Name: "Dazzled", Changes: []change.Spec{pen("-1", "attack")}},
		{ID: "deafened", Name: "Deafened", Changes: []change.Spec{pen("-4", "init")}},
		{ID: "entangled", Name: "Entangled", Changes: []change.Spec{pen("-4", "dex"), pen("-2", "attack")}},
		{ID: "grappled", Name: "Grappled", Changes: []change.Spec{pen("-4", "dex"), pen("-2", "attack"), pen("-2", "cmb")}},
		{ID: "helpless", Name: "Helpless", Flags: []change.Flag{change.NoDex}},
		{ID: "paralyzed", Name: "Paralyzed", Flags: []change.Flag{change.NoDex, change.NoStr}},
		{ID: "pinned", Name: "Pinned", Flags: []change.Flag{change.LoseDexToAC}, Notes: loseDexNotes},
		fear("shaken", "Shaken"),
		fear("frightened", "Frightened"),
		fear("panicked", "Panicked"),
		{ID: "sickened", Name: "Sickened", Changes: []change.Spec{
			pen("-2", "attack"), pen("-2", "wdamage"), pen("-2", "allSavingThrows"), pen("-2", "skills"), pen("-2", "allChecks"),
		}},
		{ID: "stunned", Name: "Stunned", Changes: []change.Spec{pen("-2", "ac")}, Flags: []change.Flag{change.LoseDexToAC}, Notes: loseDexNotes},
		{ID: "fatigued", Name: "Fatigued", Changes: []change.Spec{pen("-2", "str"), pen("-2", "dex")}},
		{ID: "exhausted", Name: "Exhausted", Changes: []change.Spec{pen("-6", "str"), pen("-6", "dex")}, Supersedes: []string{"fatigued"}},
		{ID: "wildshaped", Name: "Wild Shape"},
		{ID: "polymorphed", Name: "Polymorphed"},
	} {
		r.Register(d)
	}
	return r
}
