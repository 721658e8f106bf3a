package eventqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueOrdersByTime(t *testing.T) {
	t.Run("should pop events in ascending time order", func(t *testing.T) {
		q := New()
		q.Schedule(30, "b", 1, nil)
		q.Schedule(10, "a", 2, nil)
		q.Schedule(20, "c", 3, nil)

		first, ok := q.Next()
		assert.True(t, ok)
		assert.Equal(t, 10.0, first.Time)

		second, ok := q.Next()
		assert.True(t, ok)
		assert.Equal(t, 20.0, second.Time)

		third, ok := q.Next()
		assert.True(t, ok)
		assert.Equal(t, 30.0, third.Time)

		_, ok = q.Next()
		assert.False(t, ok)
	})
}

func TestQueueBreaksTiesByInsertionOrder(t *testing.T) {
	t.Run("should break same-time ties by sequence", func(t *testing.T) {
		q := New()
		q.Schedule(5, "first", 1, nil)
		q.Schedule(5, "second", 2, nil)
		q.Schedule(5, "third", 3, nil)

		first, _ := q.Next()
		second, _ := q.Next()
		third, _ := q.Next()

		assert.Equal(t, Kind("first"), first.Kind)
		assert.Equal(t, Kind("second"), second.Kind)
		assert.Equal(t, Kind("third"), third.Kind)
	})
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	t.Run("should leave the queue untouched", func(t *testing.T) {
		q := New()
		q.Schedule(1, "x", 1, nil)

		peeked, ok := q.Peek()
		assert.True(t, ok)
		assert.Equal(t, 1.0, peeked.Time)
		assert.Equal(t, 1, q.Len())

		popped, ok := q.Next()
		assert.True(t, ok)
		assert.Equal(t, peeked, popped)
		assert.Equal(t, 0, q.Len())
	})
}
