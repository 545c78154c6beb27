package change

import "sort"

// Flag is a boolean feature flag raised by items or conditions.
type Flag string

const (
	LoseDexToAC          Flag = "loseDexToAC"
	NoDex                Flag = "noDex"
	NoStr                Flag = "noStr"
	OneInt               Flag = "oneInt"
	OneWis               Flag = "oneWis"
	OneCha               Flag = "oneCha"
	UncannyDodge         Flag = "uncannyDodge"
	NoEncumbrance        Flag = "noEncumbrance"
	MediumArmorFullSpeed Flag = "mediumArmorFullSpeed"
	HeavyArmorFullSpeed  Flag = "heavyArmorFullSpeed"
)

// KnownFlags lists every flag in display order.
var KnownFlags = []Flag{
	LoseDexToAC, NoDex, NoStr, OneInt, OneWis, OneCha, UncannyDodge,
	NoEncumbrance, MediumArmorFullSpeed, HeavyArmorFullSpeed,
}

// FlagLabels are the provenance labels for flags.
var FlagLabels = map[Flag]string{
	LoseDexToAC:          "Lose Dex to AC",
	NoDex:                "Dex 0",
	NoStr:                "Str 0",
	OneInt:               "Int 1",
	OneWis:               "Wis 1",
	OneCha:               "Cha 1",
	UncannyDodge:         "Uncanny Dodge",
	NoEncumbrance:        "No Encumbrance",
	MediumArmorFullSpeed: "Full speed in medium armor",
	HeavyArmorFullSpeed:  "Full speed in heavy armor",
}

// Flags is a set of raised flags. The zero value is empty and ready to use
// after Set allocates it.
type Flags map[Flag]bool

// Has reports whether f is raised.
func (fs Flags) Has(f Flag) bool { return fs[f] }

// Set raises f.
func (fs Flags) Set(f Flag) { fs[f] = true }

// List returns the raised flags sorted by name.
func (fs Flags) List() []Flag {
	out := make([]Flag, 0, len(fs))
	for f, on := range fs {
		if on {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
