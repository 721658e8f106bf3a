// Package replay drives a unit's persisted event log forward as a
// controllable virtual-time stream: play/pause/seek/speed/stop over a
// control channel, ticks of derived bed changes and a live KPI snapshot
// out on a per-session updates channel.
package replay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wardops/simcore/internal/kpi"
	"github.com/wardops/simcore/internal/store"
)

const (
	minSpeed   = 0.1
	maxSpeed   = 10.0
	tickStep   = 60 * time.Second
	horizon    = 24 * time.Hour
	pauseSleep = 100 * time.Millisecond
)

// DefaultAnchor is the documented wall-clock default for a replay's
// start_time when the caller doesn't supply one, matching the demo
// dataset's own anchor.
var DefaultAnchor = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// CommandType enumerates the control-channel verbs a subscriber can send.
type CommandType string

const (
	CommandPlay  CommandType = "play"
	CommandPause CommandType = "pause"
	CommandSeek  CommandType = "seek"
	CommandSpeed CommandType = "speed"
	CommandStop  CommandType = "stop"
)

// Command is one inbound control-channel message.
type Command struct {
	Type  CommandType
	Time  time.Time // for CommandSeek
	Speed float64   // for CommandSpeed
}

// EventMarker is one event serialized into a tick's delta.
type EventMarker struct {
	ID        int64                  `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	PatientID *int                   `json:"patient_id,omitempty"`
	BedID     *int                   `json:"bed_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// BedChange is one bed's derived status transition for a tick.
type BedChange struct {
	BedID     int    `json:"bed_id"`
	Status    string `json:"status"`
	PatientID *int   `json:"patient_id,omitempty"`
}

// Delta is the payload of a "tick" message.
type Delta struct {
	EventMarkers []EventMarker      `json:"event_markers"`
	BedChanges   []BedChange        `json:"bed_changes"`
	Metrics      *kpi.KPISnapshot   `json:"metrics,omitempty"`
}

// Message is one outbound message on the stream: a "tick", "complete", or
// "error".
type Message struct {
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
	Delta     *Delta     `json:"delta,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// Session is one subscriber's replay of a unit's event log.
type Session struct {
	store *store.Store
	kpi   *kpi.Reader

	unitID  int
	t       time.Time
	end     time.Time
	speed   float64
	paused  bool
	noSleep bool

	control chan Command
}

// Option configures a Session at construction.
type Option func(*Session)

// WithNoRealtimeSleep disables the real-time pacing sleep between ticks,
// so a test can drive a full 24 hour replay without actually waiting
// real wall-clock time.
func WithNoRealtimeSleep() Option {
	return func(s *Session) { s.noSleep = true }
}

// NewSession builds a replay session for unitID starting at startTime
// (DefaultAnchor if zero) at the given speed (clamped to [0.1, 10],
// defaulting to 1.0 if zero or negative).
func NewSession(st *store.Store, reader *kpi.Reader, unitID int, startTime time.Time, speed float64, opts ...Option) *Session {
	if startTime.IsZero() {
		startTime = DefaultAnchor
	}
	if speed <= 0 {
		speed = 1.0
	}

	s := &Session{
		store:   st,
		kpi:     reader,
		unitID:  unitID,
		t:       startTime,
		end:     startTime.Add(horizon),
		speed:   clampSpeed(speed),
		control: make(chan Command, 8),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Control returns the channel a caller sends play/pause/seek/speed/stop
// commands on.
func (s *Session) Control() chan<- Command {
	return s.control
}

// Stream runs the tick loop until the horizon is exhausted, a stop
// command arrives, an error occurs, or ctx is cancelled, sending each
// outcome on the returned channel before closing it.
func (s *Session) Stream(ctx context.Context) <-chan Message {
	out := make(chan Message, 1)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if stop := s.drainControl(); stop {
				return
			}

			if s.paused {
				select {
				case <-ctx.Done():
					return
				case <-time.After(pauseSleep):
				}
				continue
			}

			if s.t.After(s.end) {
				out <- Message{Type: "complete"}
				return
			}

			msg, err := s.tick(ctx)
			if err != nil {
				out <- Message{Type: "error", Message: err.Error()}
				return
			}
			out <- msg

			s.t = s.t.Add(tickStep)

			if !s.noSleep {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(float64(time.Second) / s.speed)):
				}
			}
		}
	}()

	return out
}

// drainControl applies every pending control command without blocking,
// returning true if a stop was among them.
func (s *Session) drainControl() bool {
	for {
		select {
		case cmd := <-s.control:
			switch cmd.Type {
			case CommandPlay:
				s.paused = false
			case CommandPause:
				s.paused = true
			case CommandSeek:
				s.t = cmd.Time
			case CommandSpeed:
				s.speed = clampSpeed(cmd.Speed)
			case CommandStop:
				return true
			}
		default:
			return false
		}
	}
}

func (s *Session) tick(ctx context.Context) (Message, error) {
	from := s.t.Add(-tickStep)
	events, err := s.store.QueryWindow(ctx, s.unitID, from, s.t)
	if err != nil {
		return Message{}, err
	}

	delta := &Delta{
		EventMarkers: make([]EventMarker, 0, len(events)),
		BedChanges:   make([]BedChange, 0),
	}
	for _, e := range events {
		marker := EventMarker{ID: e.ID, Type: e.EventType, Timestamp: e.Timestamp, PatientID: e.PatientID, BedID: e.BedID}
		if len(e.Data) > 0 {
			var data map[string]interface{}
			if err := json.Unmarshal(e.Data, &data); err == nil {
				marker.Data = data
			}
		}
		delta.EventMarkers = append(delta.EventMarkers, marker)

		if change, ok := bedChangeFor(e); ok {
			delta.BedChanges = append(delta.BedChanges, change)
		}
	}

	if s.kpi != nil {
		snap, err := s.kpi.KPISnapshot(ctx, s.unitID)
		if err == nil {
			delta.Metrics = snap
		}
	}

	return Message{Type: "tick", Timestamp: s.t, Delta: delta}, nil
}

// bedChangeFor derives a bed's status transition for the replay's
// bed_changes feed, per the fixed event-type-to-status table: a
// bed_assignment occupies the bed, a discharge empties it, and a
// cleaning window flips it to "cleaning" then back to "empty".
func bedChangeFor(e store.EventRecord) (BedChange, bool) {
	if e.BedID == nil {
		return BedChange{}, false
	}
	switch e.EventType {
	case "bed_assignment":
		return BedChange{BedID: *e.BedID, Status: "occupied", PatientID: e.PatientID}, true
	case "discharge":
		return BedChange{BedID: *e.BedID, Status: "empty"}, true
	case "cleaning_start":
		return BedChange{BedID: *e.BedID, Status: "cleaning"}, true
	case "cleaning_end":
		return BedChange{BedID: *e.BedID, Status: "empty"}, true
	default:
		return BedChange{}, false
	}
}

func clampSpeed(v float64) float64 {
	if v < minSpeed {
		return minSpeed
	}
	if v > maxSpeed {
		return maxSpeed
	}
	return v
}
