package runner

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/wardops/simcore/pkg/eventqueue"
)

func TestRunSinkRecord(t *testing.T) {
	t.Run("should tag every event with its owning scenario", func(t *testing.T) {
		scenarioID := uuid.New()
		sink := newRunSink(scenarioID)

		sink.record(0, eventqueue.Kind("arrival"), 1, 0, 0, map[string]interface{}{"acuity": "esi_2"})
		sink.record(9, eventqueue.Kind("bed_assignment"), 1, 4, 2, nil)

		assert.Len(t, sink.events, 2)
		assert.Equal(t, scenarioID, *sink.events[0].ScenarioID)
		assert.Equal(t, 1, *sink.events[0].PatientID)
		assert.Nil(t, sink.events[0].BedID)
		assert.Equal(t, 4, *sink.events[1].BedID)
		assert.Equal(t, 2, *sink.events[1].NurseID)
	})

	t.Run("should leave zero-valued ids unset", func(t *testing.T) {
		sink := newRunSink(uuid.New())

		sink.record(3, eventqueue.Kind("cleaning_start"), 0, 3, 0, nil)

		assert.Nil(t, sink.events[0].PatientID)
		assert.NotNil(t, sink.events[0].BedID)
		assert.Nil(t, sink.events[0].NurseID)
	})
}

func TestRunSinkBuildEvents(t *testing.T) {
	t.Run("should stamp timestamps from each event's virtual-clock offset, not emission order", func(t *testing.T) {
		sink := newRunSink(uuid.New())
		sink.record(0, eventqueue.Kind("arrival"), 1, 0, 0, nil)
		sink.record(9, eventqueue.Kind("triage"), 1, 0, 0, nil)
		sink.record(9, eventqueue.Kind("bed_assignment"), 1, 2, 0, nil)

		anchor := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		records := sink.buildEvents(anchor)

		assert.Len(t, records, 3)
		assert.Equal(t, anchor, records[0].Timestamp)
		assert.Equal(t, anchor.Add(9*time.Minute), records[1].Timestamp)
		assert.Equal(t, records[1].Timestamp, records[2].Timestamp,
			"two events fired at the same virtual minute must persist with the same timestamp")
	})
}
