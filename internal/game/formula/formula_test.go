package formula_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/d20sheet/internal/game/formula"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"2", 2},
		{"-3.5", -3.5},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"7 / 2", 3.5},
		{"floor(7 / 2)", 3},
		{"floor(-3 / 2)", -2},
		{"ceil(7 / 2)", 4},
		{"round(2.5)", 3},
		{"min(3, 1, 2)", 1},
		{"max(3, 9)", 9},
		{"abs(-4)", 4},
		{"pow(2, 3)", 8},
		{"clamp(12, 0, 10)", 10},
		{"mod(7, 3)", 1},
		{"7 % 2", 1},
		{"-7 % 3", -1},
		{"7.5 % 2", 1.5},
		{"1 + 10 % 4 * 2", 5},
		{"2 > 1 ? 5 : 6", 5},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := formula.Evaluate(tc.in, nil)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvaluate_Variables(t *testing.T) {
	scope := formula.Values{
		"abilities.str.mod":   3,
		"attributes.hd.total": 5,
	}
	got, err := formula.Evaluate("@abilities.str.mod * @attributes.hd.total", scope)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)
}

func TestEvaluate_ModuloOnVariables(t *testing.T) {
	scope := formula.Values{"a": 7, "abilities.str.total": 17}
	got, err := formula.Evaluate("@a % 2", scope)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = formula.Evaluate("floor(@abilities.str.total % 5)", scope)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	_, err = formula.Evaluate("@a % 0", scope)
	var fe *formula.Error
	assert.True(t, errors.As(err, &fe))
}

func TestEvaluate_MissingPathIsZero(t *testing.T) {
	got, err := formula.Evaluate("@attributes.unknown.total + 4", formula.Values{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)
}

func TestEvaluate_TrailingDotIgnored(t *testing.T) {
	got, err := formula.Evaluate("@level. + 1", formula.Values{"level": 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestEvaluate_Dice_WithinBounds_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		level := rapid.IntRange(0, 20).Draw(rt, "level")
		got, err := formula.Evaluate("2d6 + @level", formula.Values{"level": float64(level)})
		require.NoError(rt, err)
		assert.GreaterOrEqual(rt, got, float64(2+level))
		assert.LessOrEqual(rt, got, float64(12+level))
	})
}

func TestEvaluate_Dice_Deterministic(t *testing.T) {
	scope := formula.Values{"cl": 5}
	a, err := formula.Evaluate("1d20 + 3d6 + (@cl)d4", scope)
	require.NoError(t, err)
	b, err := formula.Evaluate("1d20 + 3d6 + (@cl)d4", scope)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluate_Dice_SeedChangesRolls(t *testing.T) {
	seen := map[float64]bool{}
	for seed := uint64(0); seed < 50; seed++ {
		v, err := formula.Evaluate("1d20", formula.WithSeed(formula.Values{}, seed))
		require.NoError(t, err)
		seen[v] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestEvaluate_GroupedDiceCount(t *testing.T) {
	got, err := formula.Evaluate("(@cl)d6", formula.Values{"cl": 4})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 4.0)
	assert.LessOrEqual(t, got, 24.0)

	zero, err := formula.Evaluate("(@cl)d6", formula.Values{"cl": 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)
}

func TestEvaluate_CallAsDiceCount(t *testing.T) {
	scope := formula.Values{"hd": 5}
	got, err := formula.Evaluate("ceil(@hd / 2)d6", scope)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 3.0)
	assert.LessOrEqual(t, got, 18.0)

	got, err = formula.Evaluate("max(1, floor(@hd / 4))d1 + 1", scope)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestEvaluate_SingleSidedDie(t *testing.T) {
	got, err := formula.Evaluate("(@x)d1", formula.Values{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	got, err = formula.Evaluate("2d1 + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestEvaluate_BareDie(t *testing.T) {
	got, err := formula.Evaluate("d4", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 1.0)
	assert.LessOrEqual(t, got, 4.0)
}

func TestEvaluate_KeepHighest(t *testing.T) {
	got, err := formula.Evaluate("4d6kh3", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 3.0)
	assert.LessOrEqual(t, got, 18.0)
}

func TestEvaluate_StringLiteralNotRewritten(t *testing.T) {
	got, err := formula.Evaluate(`sizeDieMax(1, 8, "L")`, nil)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)
}

func TestEvaluate_SizeRoll(t *testing.T) {
	got, err := formula.Evaluate("sizeRoll(1, 8, @size)", formula.Values{"size": 1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 2.0)
	assert.LessOrEqual(t, got, 12.0)

	max, err := formula.Evaluate("sizeDieMax(1, 8, -1)", nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, max)

	crit, err := formula.Evaluate("sizeDieMax(1, 8, 0, 2)", nil)
	require.NoError(t, err)
	assert.Equal(t, 16.0, crit)
}

func TestEvaluate_Malformed_ReturnsFormulaError(t *testing.T) {
	for _, in := range []string{"1 +", "floor(", "@", "foo bar", "_secret + 1", "\"open", "sizeRoll", "2d6kh9"} {
		t.Run(in, func(t *testing.T) {
			v, err := formula.Evaluate(in, nil)
			require.Error(t, err)
			var fe *formula.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, in, fe.Formula)
			assert.Equal(t, 0.0, v)
		})
	}
}

func TestEvaluate_NonNumericResult(t *testing.T) {
	_, err := formula.Evaluate(`"abc"`, nil)
	var fe *formula.Error
	require.ErrorAs(t, err, &fe)
}

func TestEvaluate_ReferentiallyTransparent_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Float64Range(-100, 100).Draw(rt, "a")
		b := rapid.Float64Range(1, 100).Draw(rt, "b")
		scope := formula.Values{"x.a": a, "x.b": b}
		f := "floor(@x.a / @x.b) + 1d8"
		v1, err := formula.Evaluate(f, scope)
		require.NoError(rt, err)
		v2, err := formula.Evaluate(f, scope)
		require.NoError(rt, err)
		assert.Equal(rt, v1, v2)
		base := math.Floor(a / b)
		assert.GreaterOrEqual(rt, v1, base+1)
		assert.LessOrEqual(rt, v1, base+8)
	})
}

func TestEvaluator_Helpers(t *testing.T) {
	e := formula.New(
		formula.WithHelper("double", func(args ...float64) (float64, error) { return args[0] * 2, nil }),
		formula.WithHelper("floor", func(args ...float64) (float64, error) { return 0, nil }),
	)
	assert.Equal(t, []string{"double"}, e.Helpers())

	got, err := e.Evaluate("double(@x) + floor(1.5)", formula.Values{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, 9.0, got)

	_, err = e.Evaluate("double(1)", nil)
	require.NoError(t, err)

	failing := formula.New(formula.WithHelper("boom", func(...float64) (float64, error) {
		return 0, errors.New("kaboom")
	}))
	_, err = failing.Evaluate("boom(1)", nil)
	require.ErrorContains(t, err, "kaboom")
}

func TestEvaluator_CachesPrograms(t *testing.T) {
	e := formula.New(formula.WithCacheSize(2))
	for i := 0; i < 3; i++ {
		_, err := e.Evaluate("@a + 1", formula.Values{"a": 1})
		require.NoError(t, err)
	}
	st := e.Stats()
	assert.Equal(t, 1, st.Size)
	assert.Equal(t, int64(2), st.Hits)

	for _, f := range []string{"@a + 2", "@a + 3", "@a + 4"} {
		_, err := e.Evaluate(f, nil)
		require.NoError(t, err)
	}
	st = e.Stats()
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, int64(4), st.Misses)
	assert.Equal(t, int64(2), st.Evictions)

	// "@a + 4" is most recent, so a repeat hits.
	_, err := e.Evaluate("@a + 4", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Stats().Hits)
}

func TestEvaluator_Check(t *testing.T) {
	e := formula.New()
	assert.NoError(t, e.Check("@a + 1d6"))
	assert.NoError(t, e.Check(""))
	assert.Error(t, e.Check("1 +"))
}

func TestScopes(t *testing.T) {
	base := formula.Values{"abilities.str.total": 18, "abilities.str.mod": 4, "abilities.dex.mod": 2}
	masked := formula.Masked{Scope: base, Prefixes: []string{"abilities.str"}}
	_, ok := masked.Lookup("abilities.str.mod")
	assert.False(t, ok)
	v, ok := masked.Lookup("abilities.dex.mod")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	layered := formula.Layered{formula.Values{"size": -1}, nil, base}
	v, ok = layered.Lookup("size")
	assert.True(t, ok)
	assert.Equal(t, -1.0, v)
	v, _ = layered.Lookup("abilities.str.mod")
	assert.Equal(t, 4.0, v)
}
