package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDelta_EqualRatings(t *testing.T) {
	t.Parallel()

	// Even match transfers half the K factor
	assert.Equal(t, 16, ComputeDelta(1200, 1200))
}

func TestComputeDelta_FavouriteWins(t *testing.T) {
	t.Parallel()

	// Strong favourite gains little
	delta := ComputeDelta(2000, 1200)
	assert.GreaterOrEqual(t, delta, 1)
	assert.Less(t, delta, 5)
}

func TestComputeDelta_UnderdogWins(t *testing.T) {
	t.Parallel()

	// Underdog win transfers close to the full K factor
	delta := ComputeDelta(1200, 2000)
	assert.Greater(t, delta, 28)
	assert.LessOrEqual(t, delta, kFactor)
}

func TestComputeDelta_NeverBelowOne(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, ComputeDelta(3000, 100), 1)
}
