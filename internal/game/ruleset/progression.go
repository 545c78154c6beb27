package ruleset

import (
	"fmt"
	"math"
)

// BABProgression is a class base attack bonus track.
type BABProgression string

const (
	BABLow  BABProgression = "low"
	BABMed  BABProgression = "med"
	BABHigh BABProgression = "high"
)

// Rate is the per-level BAB gain.
func (p BABProgression) Rate() float64 {
	switch p {
	case BABHigh:
		return 1
	case BABMed:
		return .75
	case BABLow:
		return .5
	}
	return 0
}

// Discrete returns the whole-number BAB for level class levels.
func (p BABProgression) Discrete(level int) int {
	return int(math.Floor(float64(level) * p.Rate()))
}

// Fractional returns the unrounded BAB for level class levels.
func (p BABProgression) Fractional(level int) float64 {
	return float64(level) * p.Rate()
}

// SaveProgression is a class saving throw track.
type SaveProgression string

const (
	SaveNone SaveProgression = ""
	SaveLow  SaveProgression = "low"
	SaveHigh SaveProgression = "high"
)

// Discrete returns the save bonus for level class levels: good
// 2 + floor(l/2), poor floor(l/3).
func (p SaveProgression) Discrete(level int) int {
	switch p {
	case SaveHigh:
		return 2 + level/2
	case SaveLow:
		return level / 3
	}
	return 0
}

// Fractional returns the unrounded per-class save bonus. The one-time +2 for
// good saves is added by the caller.
func (p SaveProgression) Fractional(level int) float64 {
	switch p {
	case SaveHigh:
		return float64(level) / 2
	case SaveLow:
		return float64(level) / 3
	}
	return 0
}

// Rounding names a rounding rule from configuration.
type Rounding string

const (
	RoundUp      Rounding = "up"
	RoundNearest Rounding = "nearest"
	RoundDown    Rounding = "down"
)

// ParseRounding validates a rounding name.
func ParseRounding(s string) (Rounding, error) {
	switch r := Rounding(s); r {
	case RoundUp, RoundNearest, RoundDown:
		return r, nil
	}
	return "", fmt.Errorf("unknown rounding %q", s)
}

// Apply rounds v by r. Unknown rules round down.
func (r Rounding) Apply(v float64) float64 {
	switch r {
	case RoundUp:
		return math.Ceil(v)
	case RoundNearest:
		return math.Round(v)
	default:
		return math.Floor(v)
	}
}
