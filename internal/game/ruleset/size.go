package ruleset

import (
	"fmt"
	"strings"
)

// Size is a creature size category, Fine through Colossal.
type Size int

const (
	Fine Size = iota
	Diminutive
	Tiny
	Small
	Medium
	Large
	Huge
	Gargantuan
	Colossal
)

var sizeKeys = [...]string{"fine", "dim", "tiny", "sm", "med", "lg", "huge", "grg", "col"}

var sizeNames = [...]string{"Fine", "Diminutive", "Tiny", "Small", "Medium", "Large", "Huge", "Gargantuan", "Colossal"}

var (
	sizeACMods      = [...]int{8, 4, 2, 1, 0, -1, -2, -4, -8}
	sizeSpecialMods = [...]int{-8, -4, -2, -1, 0, 1, 2, 4, 8}
	carryNormal     = [...]float64{.125, .25, .5, .75, 1, 2, 4, 8, 16}
	carryQuadruped  = [...]float64{.25, .5, .75, 1, 1.5, 3, 6, 12, 24}
)

// ParseSize accepts a size key ("sm", "lg") or a full name ("Small").
func ParseSize(s string) (Size, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	if k == "" {
		return Medium, nil
	}
	for i := range sizeKeys {
		if k == sizeKeys[i] || k == strings.ToLower(sizeNames[i]) {
			return Size(i), nil
		}
	}
	return Medium, fmt.Errorf("unknown size %q", s)
}

// SizeFromOffset returns the size offset steps from Medium, clamped to the
// chart.
func SizeFromOffset(offset int) Size {
	return Size(min(max(int(Medium)+offset, int(Fine)), int(Colossal)))
}

func (s Size) valid() bool { return s >= Fine && s <= Colossal }

func (s Size) String() string {
	if !s.valid() {
		return fmt.Sprintf("Size(%d)", int(s))
	}
	return sizeNames[s]
}

// Key returns the short document key, e.g. "sm".
func (s Size) Key() string {
	if !s.valid() {
		return ""
	}
	return sizeKeys[s]
}

// Offset returns the number of steps from Medium (-4..+4).
func (s Size) Offset() int { return int(s) - int(Medium) }

// ACMod is the size modifier to AC and attack.
func (s Size) ACMod() int { return sizeACMods[s] }

// StealthMod is the size modifier to Hide: 4 per step.
func (s Size) StealthMod() int { return -4 * s.Offset() }

// FlyMod is the size modifier to Fly: 2 per step.
func (s Size) FlyMod() int { return -2 * s.Offset() }

// SpecialMod is the size modifier to CMB and CMD.
func (s Size) SpecialMod() int { return sizeSpecialMods[s] }

// CarryMultiplier scales carrying capacity.
func (s Size) CarryMultiplier(quadruped bool) float64 {
	if quadruped {
		return carryQuadruped[s]
	}
	return carryNormal[s]
}
