package dice

import (
	"fmt"
	"slices"
	"strconv"
)

// sizeDieChart is the damage-die progression by size step.
var sizeDieChart = []string{
	"1", "1d2", "1d3", "1d4", "1d6", "1d8", "1d10", "2d6", "2d8", "3d6",
	"3d8", "4d6", "4d8", "6d6", "6d8", "8d6", "8d8", "12d6", "12d8", "16d6", "16d8",
}

const (
	mediumStep = 4
	maxStep    = 8
)

// SizeDie scales a medium creature's countDsides damage die to a creature
// offset size steps away from medium (-4 fine .. +4 colossal), then
// multiplies the dice count by crit. Dice not on the chart are matched to
// the chart entry with the same maximum. ok is false when no chart entry
// matched and the medium die was returned unscaled.
func SizeDie(count, sides, offset, crit int) (formula string, ok bool) {
	medium := fmt.Sprintf("%dd%d", count, sides)
	chart := sizeDieChart
	if !slices.Contains(chart, medium) {
		chart = slices.Clone(sizeDieChart)
		for i, d := range chart {
			if e, err := Parse(d); err == nil && e.Count*e.Sides == count*sides {
				chart[i] = medium
			}
		}
	}

	target := min(max(mediumStep+offset, 0), maxStep)
	index := slices.Index(chart, medium)
	formula = medium
	if index >= 0 {
		d6 := slices.Index(chart, "1d6")
		d8 := slices.Index(chart, "1d8")
		if d8 < 0 {
			d8 = slices.Index(chart, "2d4")
		}
		cur := mediumStep
		for cur > target {
			if cur <= mediumStep || index <= d8 {
				index--
			} else {
				index -= 2
			}
			cur--
		}
		for cur < target {
			if cur <= mediumStep-1 || index <= d6 {
				index++
			} else {
				index += 2
			}
			cur++
		}
		index = min(max(index, 0), len(chart)-1)
		formula = chart[index]
	}

	if crit != 1 {
		if e, err := Parse(formula); err == nil {
			formula = strconv.Itoa(e.Count*crit) + "d" + strconv.Itoa(e.Sides)
		}
	}
	return formula, index >= 0
}

// RollFormula rolls a chart entry produced by SizeDie. Constant entries such
// as "1" are returned as-is.
func RollFormula(formula string, src Source) (int, error) {
	if n, err := strconv.Atoi(formula); err == nil {
		return n, nil
	}
	r, err := RollExpr(formula, src)
	if err != nil {
		return 0, err
	}
	return r.Total(), nil
}

// MaxFormula returns the largest result of a chart entry produced by SizeDie.
func MaxFormula(formula string) (int, error) {
	if n, err := strconv.Atoi(formula); err == nil {
		return n, nil
	}
	e, err := Parse(formula)
	if err != nil {
		return 0, err
	}
	return e.Max(), nil
}
