package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wardops/simcore/internal/store"
)

func TestClampSpeed(t *testing.T) {
	t.Run("should clamp below the floor", func(t *testing.T) {
		assert.Equal(t, minSpeed, clampSpeed(0.01))
	})

	t.Run("should clamp above the ceiling", func(t *testing.T) {
		assert.Equal(t, maxSpeed, clampSpeed(25))
	})

	t.Run("should leave an in-range value untouched", func(t *testing.T) {
		assert.Equal(t, 2.5, clampSpeed(2.5))
	})
}

func TestBedChangeFor(t *testing.T) {
	bed := 7
	patient := 3

	cases := []struct {
		name       string
		event      store.EventRecord
		wantStatus string
		wantOK     bool
	}{
		{"bed assignment occupies", store.EventRecord{EventType: "bed_assignment", BedID: &bed, PatientID: &patient}, "occupied", true},
		{"discharge empties", store.EventRecord{EventType: "discharge", BedID: &bed}, "empty", true},
		{"cleaning start", store.EventRecord{EventType: "cleaning_start", BedID: &bed}, "cleaning", true},
		{"cleaning end", store.EventRecord{EventType: "cleaning_end", BedID: &bed}, "empty", true},
		{"unrelated event type ignored", store.EventRecord{EventType: "triage", BedID: &bed}, "", false},
		{"no bed on the event ignored", store.EventRecord{EventType: "bed_assignment"}, "", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			change, ok := bedChangeFor(c.event)
			assert.Equal(t, c.wantOK, ok)
			if ok {
				assert.Equal(t, c.wantStatus, change.Status)
				assert.Equal(t, bed, change.BedID)
			}
		})
	}
}

func TestSessionDrainControl(t *testing.T) {
	t.Run("should apply play, pause, seek, and speed without blocking", func(t *testing.T) {
		s := NewSession(nil, nil, 1, time.Time{}, 0)
		seekTo := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

		s.control <- Command{Type: CommandPause}
		s.control <- Command{Type: CommandSeek, Time: seekTo}
		s.control <- Command{Type: CommandSpeed, Speed: 4}

		stop := s.drainControl()

		assert.False(t, stop)
		assert.True(t, s.paused)
		assert.Equal(t, seekTo, s.t)
		assert.Equal(t, 4.0, s.speed)
	})

	t.Run("should report stop without applying further commands", func(t *testing.T) {
		s := NewSession(nil, nil, 1, time.Time{}, 1)
		s.control <- Command{Type: CommandStop}
		s.control <- Command{Type: CommandPause}

		stop := s.drainControl()

		assert.True(t, stop)
		assert.False(t, s.paused)
	})

	t.Run("should return false immediately with nothing queued", func(t *testing.T) {
		s := NewSession(nil, nil, 1, time.Time{}, 1)

		assert.False(t, s.drainControl())
	})
}

func TestNewSessionDefaults(t *testing.T) {
	t.Run("should default start time to the documented anchor", func(t *testing.T) {
		s := NewSession(nil, nil, 1, time.Time{}, 1)

		assert.Equal(t, DefaultAnchor, s.t)
		assert.Equal(t, DefaultAnchor.Add(horizon), s.end)
	})

	t.Run("should default and clamp speed", func(t *testing.T) {
		s := NewSession(nil, nil, 1, time.Time{}, 0)
		assert.Equal(t, 1.0, s.speed)

		s2 := NewSession(nil, nil, 1, time.Time{}, 99)
		assert.Equal(t, maxSpeed, s2.speed)
	})
}
