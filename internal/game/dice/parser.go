package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a dice term. Supported forms: "d20", "2d6", "2d6+3",
// "4d8-2", "4d6kh3", "4d6kh3+1".
//
// Postcondition: Returns an Expression with Count >= 1 and Sides >= 2, or an error.
func Parse(expr string) (Expression, error) {
	if expr == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	s := strings.ToLower(strings.TrimSpace(expr))
	out := Expression{Raw: expr, Count: 1}

	countStr, rest, ok := strings.Cut(s, "d")
	if !ok {
		return Expression{}, fmt.Errorf("dice: missing 'd' in expression %q", expr)
	}
	if countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", expr, err)
		}
		if n <= 0 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: must be >= 1", expr)
		}
		out.Count = n
	}

	sides, rest := leadingDigits(rest)
	n, err := strconv.Atoi(sides)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", expr, err)
	}
	if n < 1 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 1", expr)
	}
	out.Sides = n

	if strings.HasPrefix(rest, "kh") {
		var kh string
		kh, rest = leadingDigits(rest[2:])
		k, err := strconv.Atoi(kh)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid kh value in %q: %w", expr, err)
		}
		if k <= 0 || k >= out.Count {
			return Expression{}, fmt.Errorf("dice: kh value %d must be > 0 and < count %d in %q", k, out.Count, expr)
		}
		out.KeepHighest = k
	}

	if rest != "" {
		if rest[0] != '+' && rest[0] != '-' {
			return Expression{}, fmt.Errorf("dice: unexpected %q in %q", rest, expr)
		}
		m, err := strconv.Atoi(rest)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", expr, err)
		}
		out.Modifier = m
	}
	return out, nil
}

// MustParse parses expr and panics on error. Useful for package-level tables.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
