package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/d20sheet/internal/game/dice"
)

func TestSizeDie_Progression(t *testing.T) {
	cases := []struct {
		name          string
		count, sides  int
		offset, crit  int
		want          string
	}{
		{"medium unchanged", 1, 8, 0, 1, "1d8"},
		{"longsword small", 1, 8, -1, 1, "1d6"},
		{"longsword large", 1, 8, 1, 1, "2d6"},
		{"shortsword large", 1, 6, 1, 1, "1d8"},
		{"greatsword small", 2, 6, -1, 1, "1d10"},
		{"dagger tiny", 1, 4, -2, 1, "1d2"},
		{"fine floor", 1, 2, -4, 1, "1"},
		{"crit doubles dice", 1, 8, 1, 2, "4d6"},
		{"off chart matched by max", 2, 4, 0, 1, "2d4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := dice.SizeDie(tc.count, tc.sides, tc.offset, tc.crit)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSizeDie_OffChart_ReturnsMedium(t *testing.T) {
	got, ok := dice.SizeDie(3, 7, 2, 1)
	assert.False(t, ok)
	assert.Equal(t, "3d7", got)
}

func TestSizeDie_ClampsOffset_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		offset := rapid.IntRange(-20, 20).Draw(rt, "offset")
		got, ok := dice.SizeDie(1, 6, offset, 1)
		require.True(rt, ok)
		clamped, _ := dice.SizeDie(1, 6, max(-4, min(4, offset)), 1)
		assert.Equal(rt, clamped, got)
	})
}

func TestRollFormula_Constant(t *testing.T) {
	n, err := dice.RollFormula("1", dice.NewSeededSource(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := dice.MaxFormula("2d6")
	require.NoError(t, err)
	assert.Equal(t, 12, m)
}
