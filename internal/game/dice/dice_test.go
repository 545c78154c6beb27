package dice_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/d20sheet/internal/game/dice"
)

func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
}

func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, "2d6+3 → [4 5] +3 = 12", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	r := dice.RollResult{Dice: []int{4}}
	assert.Panics(t, func() { _ = r.String() })
}

func TestRollResult_String_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.StringMatching(`[0-9]+d[0-9]+[+-][0-9]+`).Draw(rt, "expression")
		ds := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 10).Draw(rt, "dice")
		mod := rapid.IntRange(-100, 100).Draw(rt, "modifier")

		r := dice.RollResult{Expression: expr, Dice: ds, Modifier: mod}
		s := r.String()
		assert.True(rt, strings.Contains(s, expr))
		assert.Contains(rt, s, fmt.Sprintf("%d", r.Total()))
	})
}

func TestParse_Forms(t *testing.T) {
	cases := []struct {
		in   string
		want dice.Expression
	}{
		{"d20", dice.Expression{Raw: "d20", Count: 1, Sides: 20}},
		{"2d6", dice.Expression{Raw: "2d6", Count: 2, Sides: 6}},
		{"2d6+3", dice.Expression{Raw: "2d6+3", Count: 2, Sides: 6, Modifier: 3}},
		{"4d8-2", dice.Expression{Raw: "4d8-2", Count: 4, Sides: 8, Modifier: -2}},
		{"4d6kh3", dice.Expression{Raw: "4d6kh3", Count: 4, Sides: 6, KeepHighest: 3}},
		{"4D6KH3+1", dice.Expression{Raw: "4D6KH3+1", Count: 4, Sides: 6, KeepHighest: 3, Modifier: 1}},
		{"3d1", dice.Expression{Raw: "3d1", Count: 3, Sides: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := dice.Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "6", "0d6", "2d0", "2dx", "4d6kh4", "4d6kh0", "2d6*3"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestExpression_MinMaxString(t *testing.T) {
	e := dice.MustParse("4d6kh3+1")
	assert.Equal(t, 19, e.Max())
	assert.Equal(t, 4, e.Min())
	assert.Equal(t, "4d6kh3+1", e.String())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("nope") })
}

func TestRoll_WithinBounds_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 10).Draw(rt, "count")
		sides := rapid.IntRange(2, 20).Draw(rt, "sides")
		mod := rapid.IntRange(-5, 5).Draw(rt, "mod")
		seed := rapid.Uint64().Draw(rt, "seed")
		e := dice.Expression{Raw: "x", Count: count, Sides: sides, Modifier: mod}

		r, err := dice.Roll(e, dice.NewSeededSource(seed, 0))
		require.NoError(rt, err)
		assert.Len(rt, r.Dice, count)
		assert.GreaterOrEqual(rt, r.Total(), e.Min())
		assert.LessOrEqual(rt, r.Total(), e.Max())
	})
}

func TestRoll_KeepHighest_KeepsLargest(t *testing.T) {
	e := dice.MustParse("4d6kh3")
	r, err := dice.Roll(e, dice.NewSeededSource(7, 7))
	require.NoError(t, err)
	require.Len(t, r.Dice, 3)
	assert.GreaterOrEqual(t, r.Dice[0], r.Dice[1])
	assert.GreaterOrEqual(t, r.Dice[1], r.Dice[2])
}

func TestSeededSource_Deterministic_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		stream := rapid.Uint64().Draw(rt, "stream")
		a := dice.NewSeededSource(seed, stream)
		b := dice.NewSeededSource(seed, stream)
		for i := 0; i < 20; i++ {
			assert.Equal(rt, a.Intn(20), b.Intn(20))
		}
	})
}

func TestSeedFor_SeparatesParts(t *testing.T) {
	assert.Equal(t, dice.SeedFor("a", "b"), dice.SeedFor("a", "b"))
	assert.NotEqual(t, dice.SeedFor("ab"), dice.SeedFor("a", "b"))
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestSources_PanicOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
	assert.Panics(t, func() { dice.NewSeededSource(1, 1).Intn(0) })
}

func TestLoggedRoller_LogsRoll(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(dice.NewSeededSource(1, 2), zap.New(core))

	res, err := r.RollExpr("2d6+1")
	require.NoError(t, err)

	entries := logs.FilterMessage("dice roll").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "2d6+1", entries[0].ContextMap()["expression"])
	assert.Equal(t, int64(res.Total()), entries[0].ContextMap()["total"])
}

func TestLoggedRoller_LogsBoundsAndRejections(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(dice.NewSeededSource(3, 0), zap.New(core))

	_, err := r.RollExpr("4d6kh3")
	require.NoError(t, err)
	ctx := logs.FilterMessage("dice roll").All()[0].ContextMap()
	assert.Equal(t, int64(3), ctx["min"])
	assert.Equal(t, int64(18), ctx["max"])

	_, err = r.RollExpr("xyz")
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("dice roll rejected").Len())
}

func TestNewLoggedRoller_Preconditions(t *testing.T) {
	assert.Panics(t, func() { dice.NewLoggedRoller(nil, zap.NewNop()) })
	assert.Panics(t, func() { dice.NewLoggedRoller(dice.NewCryptoSource(), nil) })
}
