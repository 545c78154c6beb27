package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"

	"github.com/cory-johannsen/d20sheet/internal/game/dice"
)

// sizeLetters maps the single-letter size codes accepted by sizeRoll to
// offsets from medium.
var sizeLetters = map[string]int{
	"F": -4, "D": -3, "T": -2, "S": -1, "M": 0, "L": 1, "H": 2, "G": 3, "C": 4,
}

// Builtins expr already provides and helpers may not shadow.
var reserved = map[string]bool{
	"min": true, "max": true, "floor": true, "ceil": true, "round": true, "abs": true,
	"len": true, "int": true, "float": true, "string": true,
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case nil:
		return 0, errors.New("undefined value")
	default:
		return 0, fmt.Errorf("non-numeric value of type %T", v)
	}
}

func floats(args []any) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

func seedArgs(args []any) (seed, occ uint64, rest []any, err error) {
	if len(args) < 2 {
		return 0, 0, nil, errors.New("missing seed")
	}
	s, ok := args[0].(uint64)
	if !ok {
		return 0, 0, nil, fmt.Errorf("seed of type %T", args[0])
	}
	o, err := toFloat(args[1])
	if err != nil {
		return 0, 0, nil, err
	}
	return s, uint64(o), args[2:], nil
}

// rollFn backs rewritten dice terms: _roll(seed, occurrence, count, sides, keep).
func rollFn(args ...any) (any, error) {
	seed, occ, rest, err := seedArgs(args)
	if err != nil {
		return nil, err
	}
	f, err := floats(rest)
	if err != nil {
		return nil, err
	}
	if len(f) != 3 {
		return nil, fmt.Errorf("dice term takes 3 arguments, got %d", len(f))
	}
	count, sides, keep := int(math.Floor(f[0])), int(f[1]), int(f[2])
	if count <= 0 {
		return 0.0, nil
	}
	if sides == 1 {
		return float64(count), nil
	}
	if keep >= count {
		keep = 0
	}
	e := dice.Expression{Count: count, Sides: sides, KeepHighest: keep}
	r, err := dice.Roll(e, dice.NewSeededSource(seed, occ))
	if err != nil {
		return nil, err
	}
	return float64(r.Total()), nil
}

// sizeRollFn implements sizeRoll(count, sides, size[, crit]). size is an
// offset from medium (-4..4) or a size letter.
func sizeRollFn(args ...any) (any, error) {
	seed, occ, rest, err := seedArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 || len(rest) > 4 {
		return nil, fmt.Errorf("sizeRoll takes 2 to 4 arguments, got %d", len(rest))
	}
	f, err := floats(rest[:2])
	if err != nil {
		return nil, err
	}
	offset := 0
	if len(rest) > 2 {
		if offset, err = sizeOffset(rest[2]); err != nil {
			return nil, err
		}
	}
	crit := 1
	if len(rest) > 3 {
		c, err := toFloat(rest[3])
		if err != nil {
			return nil, err
		}
		crit = max(int(c), 1)
	}
	die, _ := dice.SizeDie(int(f[0]), int(f[1]), offset, crit)
	n, err := dice.RollFormula(die, dice.NewSeededSource(seed, occ))
	if err != nil {
		return nil, err
	}
	return float64(n), nil
}

// sizeDieMaxFn implements sizeDieMax(count, sides, size[, crit]).
func sizeDieMaxFn(args ...any) (any, error) {
	if len(args) < 2 || len(args) > 4 {
		return nil, fmt.Errorf("sizeDieMax takes 2 to 4 arguments, got %d", len(args))
	}
	f, err := floats(args[:2])
	if err != nil {
		return nil, err
	}
	offset, crit := 0, 1
	if len(args) > 2 {
		if offset, err = sizeOffset(args[2]); err != nil {
			return nil, err
		}
	}
	if len(args) > 3 {
		c, err := toFloat(args[3])
		if err != nil {
			return nil, err
		}
		crit = max(int(c), 1)
	}
	die, _ := dice.SizeDie(int(f[0]), int(f[1]), offset, crit)
	n, err := dice.MaxFormula(die)
	if err != nil {
		return nil, err
	}
	return float64(n), nil
}

func sizeOffset(v any) (int, error) {
	if s, ok := v.(string); ok {
		off, ok := sizeLetters[strings.ToUpper(s)]
		if !ok {
			return 0, fmt.Errorf("unknown size %q", s)
		}
		return off, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func powFn(args ...any) (any, error) {
	f, err := floats(args)
	if err != nil {
		return nil, err
	}
	if len(f) != 2 {
		return nil, fmt.Errorf("pow takes 2 arguments, got %d", len(f))
	}
	return math.Pow(f[0], f[1]), nil
}

func clampFn(args ...any) (any, error) {
	f, err := floats(args)
	if err != nil {
		return nil, err
	}
	if len(f) != 3 {
		return nil, fmt.Errorf("clamp takes 3 arguments, got %d", len(f))
	}
	return math.Min(math.Max(f[0], f[1]), f[2]), nil
}

func modFn(args ...any) (any, error) {
	f, err := floats(args)
	if err != nil {
		return nil, err
	}
	if len(f) != 2 {
		return nil, fmt.Errorf("mod takes 2 arguments, got %d", len(f))
	}
	if f[1] == 0 {
		return nil, errors.New("mod by zero")
	}
	return math.Mod(f[0], f[1]), nil
}

// modOperator rewrites a % b into mod(a, b). Scope values are float64 and
// expr's own % accepts integers only.
type modOperator struct{}

func (modOperator) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.BinaryNode); ok && n.Operator == "%" {
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: "mod"},
			Arguments: []ast.Node{n.Left, n.Right},
		})
	}
}

func builtinOptions() []expr.Option {
	return []expr.Option{
		expr.Patch(modOperator{}),
		expr.Function("_roll", rollFn),
		expr.Function("sizeRoll", sizeRollFn),
		expr.Function("sizeDieMax", sizeDieMaxFn),
		expr.Function("pow", powFn),
		expr.Function("clamp", clampFn),
		expr.Function("mod", modFn),
	}
}
