package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBedPoolIsolationPreference(t *testing.T) {
	t.Run("should prefer an isolation bed when the request requires one", func(t *testing.T) {
		pool := NewBedPool(4)
		bedID, ok := pool.FindAvailable(0, true)
		require.True(t, ok)
		assert.Equal(t, BedIsolation, pool.bed(bedID).Type)
	})

	t.Run("should fall back to a standard bed once both isolation beds are taken", func(t *testing.T) {
		pool := NewBedPool(3)
		first, ok := pool.FindAvailable(0, true)
		require.True(t, ok)
		pool.Occupy(first, 1)

		second, ok := pool.FindAvailable(0, true)
		require.True(t, ok)
		assert.Equal(t, BedIsolation, pool.bed(second).Type)
		pool.Occupy(second, 2)

		third, ok := pool.FindAvailable(0, true)
		require.True(t, ok)
		assert.Equal(t, BedStandard, pool.bed(third).Type)
	})

	t.Run("should treat a single-bed pool as isolation", func(t *testing.T) {
		pool := NewBedPool(1)
		assert.Equal(t, BedIsolation, pool.beds[0].Type)
	})
}

func TestBedPoolCleaningHold(t *testing.T) {
	t.Run("should not offer a bed still mid-cleaning", func(t *testing.T) {
		pool := NewBedPool(1)
		bedID, ok := pool.FindAvailable(0, false)
		require.True(t, ok)
		pool.Occupy(bedID, 1)
		pool.StartCleaning(bedID, 30)

		_, ok = pool.FindAvailable(20, false)
		assert.False(t, ok, "bed should stay held until its availableAt time")

		pool.FinishCleaning(bedID, 30)
		_, ok = pool.FindAvailable(30, false)
		assert.True(t, ok, "bed should be offerable again once its cleaning has finished")
	})
}

func TestBedPoolWaitFIFO(t *testing.T) {
	t.Run("should dequeue patients in the order they were enqueued", func(t *testing.T) {
		pool := NewBedPool(1)
		pool.Enqueue(5)
		pool.Enqueue(2)
		pool.Enqueue(8)

		first, ok := pool.Dequeue()
		require.True(t, ok)
		assert.Equal(t, 5, first)

		second, ok := pool.Dequeue()
		require.True(t, ok)
		assert.Equal(t, 2, second)

		third, ok := pool.Dequeue()
		require.True(t, ok)
		assert.Equal(t, 8, third)

		_, ok = pool.Dequeue()
		assert.False(t, ok)
	})
}

func TestNursePoolCapacity(t *testing.T) {
	t.Run("should refuse an assignment once every nurse is at capacity", func(t *testing.T) {
		pool := NewNursePool(1, 2)
		_, ok := pool.Assign(1)
		require.True(t, ok)
		_, ok = pool.Assign(2)
		require.True(t, ok)

		_, ok = pool.Assign(3)
		assert.False(t, ok)
	})

	t.Run("should balance load across nurses by picking the least-loaded one", func(t *testing.T) {
		pool := NewNursePool(2, 4)
		first, _ := pool.Assign(1)
		second, _ := pool.Assign(2)
		assert.NotEqual(t, first, second, "with two equally empty nurses the pool should spread the load")
	})

	t.Run("should free capacity on release", func(t *testing.T) {
		pool := NewNursePool(1, 1)
		nurseID, ok := pool.Assign(1)
		require.True(t, ok)
		_, ok = pool.Assign(2)
		require.False(t, ok)

		pool.Release(nurseID, 1)
		_, ok = pool.Assign(2)
		assert.True(t, ok)
	})
}

func TestSlotPoolAcquireRelease(t *testing.T) {
	t.Run("should hand a freed slot to the longest-waiting patient", func(t *testing.T) {
		pool := NewSlotPool(1)
		ok := pool.Acquire()
		require.True(t, ok)

		ok = pool.Acquire()
		assert.False(t, ok, "a single-slot pool has no capacity for a second concurrent holder")

		pool.Enqueue(7)
		pool.Enqueue(9)

		next, ok := pool.Release()
		require.True(t, ok)
		assert.Equal(t, 7, next)
		assert.Equal(t, 1, pool.QueueLen())
	})

	t.Run("should report no waiter when the queue is empty", func(t *testing.T) {
		pool := NewSlotPool(2)
		pool.Acquire()
		_, ok := pool.Release()
		assert.False(t, ok)
	})
}
