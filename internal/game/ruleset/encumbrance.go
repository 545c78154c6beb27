package ruleset

import "math"

// heavyLoads is the heavy load limit in pounds for Strength 0..29.
var heavyLoads = [...]float64{
	0, 10, 20, 30, 40, 50, 60, 70, 80, 90,
	100, 115, 130, 150, 175, 200, 230, 260, 300, 350,
	400, 460, 520, 600, 700, 800, 920, 1040, 1200, 1400,
}

// HeavyLoad returns the medium-sized biped heavy load for str. Strength
// beyond the table grows by 30% of the top entry per point.
func HeavyLoad(str int) float64 {
	if str <= 0 {
		return 0
	}
	last := len(heavyLoads) - 1
	if str <= last {
		return heavyLoads[str]
	}
	return heavyLoads[last] * (1 + 0.3*float64(str-last))
}

// Capacity holds the three carrying thresholds.
type Capacity struct {
	Light, Medium, Heavy float64
}

// Load categories.
const (
	LoadLight = iota
	LoadMedium
	LoadHeavy
)

// CarryCapacity returns the load thresholds for str at size. Metric units
// halve the thresholds.
func CarryCapacity(str int, size Size, quadruped, metric bool) Capacity {
	h := HeavyLoad(str) * size.CarryMultiplier(quadruped)
	if metric {
		h /= 2
	}
	h = math.Floor(h)
	return Capacity{
		Light:  math.Floor(h / 3),
		Medium: math.Floor(2 * h / 3),
		Heavy:  h,
	}
}

// Load returns the load category for weight.
func (c Capacity) Load(weight float64) int {
	switch {
	case weight > c.Medium:
		return LoadHeavy
	case weight > c.Light:
		return LoadMedium
	default:
		return LoadLight
	}
}

// LoadPenalties returns the armor check penalty and max Dex cap for a load
// category; ok is false for a light load.
func LoadPenalties(load int) (acp, maxDex int, ok bool) {
	switch load {
	case LoadMedium:
		return 3, 3, true
	case LoadHeavy:
		return 6, 1, true
	}
	return 0, 0, false
}

// CoinWeight is the weight of n coins.
func CoinWeight(n int) float64 { return float64(n) / 50 }

// ReducedSpeed returns the encumbered speed for value. The increment is
// 5 ft (1.5 m metric).
func ReducedSpeed(value float64, metric bool) float64 {
	incr := 5.0
	if metric {
		incr = 1.5
	}
	if value <= 0 {
		return value
	}
	if value < 2*incr {
		return incr
	}
	value = math.Floor(value/incr) * incr
	result := 0.0
	counter := 2.0
	for a := incr; a <= value; a += counter * incr {
		result += incr
		if counter == 2 {
			counter = 1
		} else {
			counter = 2
		}
	}
	return result
}

// SpellSlotBonus returns the bonus slots granted by ability modifier mod at
// spell level.
func SpellSlotBonus(mod, level int) int {
	if level == 0 || mod <= 0 {
		return 0
	}
	return max(0, int(math.Ceil(float64(mod+1-level)/4)))
}

// FlyManeuverability maps a maneuverability class to its Fly modifier.
var FlyManeuverability = map[string]int{
	"clumsy":  -8,
	"poor":    -4,
	"average": 0,
	"good":    4,
	"perfect": 8,
}
