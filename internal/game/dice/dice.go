// Package dice provides dice expressions, roll results and the randomness
// sources used by sheet formulas.
package dice

import (
	"fmt"
	"strings"
)

// Expression is a parsed dice term such as "2d6", "d20" or "4d6kh3+1".
//
// Invariant: Count >= 1 and Sides >= 1 for any Expression returned by Parse.
type Expression struct {
	Raw         string // input as written
	Count       int
	Sides       int
	Modifier    int // flat modifier (may be negative)
	KeepHighest int // 0 keeps every die
}

// Kept returns how many dice contribute to the total.
func (e Expression) Kept() int {
	if e.KeepHighest > 0 {
		return e.KeepHighest
	}
	return e.Count
}

// Max returns the largest total the expression can produce.
func (e Expression) Max() int {
	return e.Kept()*e.Sides + e.Modifier
}

// Min returns the smallest total the expression can produce.
func (e Expression) Min() int {
	return e.Kept() + e.Modifier
}

// String renders the canonical form of the expression, e.g. "4d6kh3+1".
func (e Expression) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dd%d", e.Count, e.Sides)
	if e.KeepHighest > 0 {
		fmt.Fprintf(&b, "kh%d", e.KeepHighest)
	}
	if e.Modifier != 0 {
		fmt.Fprintf(&b, "%+d", e.Modifier)
	}
	return b.String()
}

// RollResult holds the audit trail for a single roll.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int // kept dice, before the modifier
	Modifier   int
}

// Total returns the sum of the kept dice plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns an audit string such as "2d6+3 → [4 5] +3 = 12".
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
