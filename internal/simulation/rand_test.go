package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomDeterminism(t *testing.T) {
	t.Run("should reproduce the same draw sequence for the same seed", func(t *testing.T) {
		a := NewRandom(123)
		b := NewRandom(123)

		for i := 0; i < 20; i++ {
			assert.Equal(t, a.Uniform(), b.Uniform())
		}
	})
}

func TestRandomUniformRange(t *testing.T) {
	t.Run("should stay within the requested bounds", func(t *testing.T) {
		r := NewRandom(1)
		for i := 0; i < 500; i++ {
			v := r.UniformRange(10, 20)
			assert.GreaterOrEqual(t, v, 10.0)
			assert.Less(t, v, 20.0)
		}
	})
}

func TestRandomIntRange(t *testing.T) {
	t.Run("should stay within [lo, hi) and only ever return whole numbers", func(t *testing.T) {
		r := NewRandom(1)
		for i := 0; i < 500; i++ {
			v := r.IntRange(10, 20)
			assert.GreaterOrEqual(t, v, 10)
			assert.Less(t, v, 20)
		}
	})

	t.Run("should return lo when hi does not exceed lo", func(t *testing.T) {
		r := NewRandom(1)
		assert.Equal(t, 5, r.IntRange(5, 5))
		assert.Equal(t, 5, r.IntRange(5, 3))
	})
}

func TestRandomBernoulli(t *testing.T) {
	t.Run("should always return true at probability 1", func(t *testing.T) {
		r := NewRandom(1)
		for i := 0; i < 20; i++ {
			assert.True(t, r.Bernoulli(1.0))
		}
	})

	t.Run("should always return false at probability 0", func(t *testing.T) {
		r := NewRandom(1)
		for i := 0; i < 20; i++ {
			assert.False(t, r.Bernoulli(0.0))
		}
	})
}

func TestChoiceWeighting(t *testing.T) {
	t.Run("should only ever return items with positive weight", func(t *testing.T) {
		r := NewRandom(5)
		items := []string{"a", "b", "c"}
		weights := []float64{1, 0, 0}
		for i := 0; i < 50; i++ {
			assert.Equal(t, "a", Choice(r, items, weights))
		}
	})

	t.Run("should fall back to the first item when weights sum to zero", func(t *testing.T) {
		r := NewRandom(5)
		items := []int{7, 8, 9}
		weights := []float64{0, 0, 0}
		assert.Equal(t, 7, Choice(r, items, weights))
	})

	t.Run("should panic on mismatched item and weight lengths", func(t *testing.T) {
		r := NewRandom(5)
		assert.Panics(t, func() {
			Choice(r, []int{1, 2}, []float64{1})
		})
	})
}
