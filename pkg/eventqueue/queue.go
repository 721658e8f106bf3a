// Package eventqueue implements a deterministic min-heap priority queue for
// discrete-event simulation. Events are ordered by virtual time, with ties
// broken by insertion order so that a fixed sequence of scheduling calls
// always drains in the same order.
package eventqueue

import (
	"container/heap"
	"fmt"
)

// Kind identifies the handler a popped event should be dispatched to.
type Kind string

// Event is a single scheduled occurrence in the simulation. EntityID names
// the engine-owned entity the event concerns (a patient, bed, or resource
// slot id); Payload carries handler-specific data.
type Event struct {
	Time     float64
	Kind     Kind
	EntityID int
	Payload  interface{}

	seq   int64
	index int // heap position, maintained by container/heap
}

func (e *Event) Seq() int64 { return e.seq }

// Queue is a min-heap keyed on (Time, seq). It implements heap.Interface
// directly so callers drive it through the container/heap package, the way
// a limit order book drives its own heap of resting orders.
type Queue struct {
	events []*Event
	nextSeq int64
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{events: make([]*Event, 0)}
	heap.Init(q)
	return q
}

func (q *Queue) Len() int { return len(q.events) }

func (q *Queue) Less(i, j int) bool {
	if q.events[i].Time != q.events[j].Time {
		return q.events[i].Time < q.events[j].Time
	}
	return q.events[i].seq < q.events[j].seq
}

func (q *Queue) Swap(i, j int) {
	q.events[i], q.events[j] = q.events[j], q.events[i]
	q.events[i].index = i
	q.events[j].index = j
}

func (q *Queue) Push(x interface{}) {
	e := x.(*Event)
	e.index = len(q.events)
	q.events = append(q.events, e)
}

func (q *Queue) Pop() interface{} {
	old := q.events
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	q.events = old[:n-1]
	return e
}

// Schedule inserts a new event at the given virtual time, in O(log n), and
// stamps it with the next monotonic sequence number so that events sharing
// a timestamp drain in the order they were scheduled.
func (q *Queue) Schedule(t float64, kind Kind, entityID int, payload interface{}) *Event {
	e := &Event{
		Time:     t,
		Kind:     kind,
		EntityID: entityID,
		Payload:  payload,
		seq:      q.nextSeq,
	}
	q.nextSeq++
	heap.Push(q, e)
	return e
}

// Next pops the earliest-scheduled event. There is no cancellation
// primitive: once scheduled, an event always fires, so handlers must treat
// stale entity state as a legitimate possibility rather than an error.
func (q *Queue) Next() (*Event, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(q).(*Event)
	return e, true
}

// Peek returns the earliest-scheduled event without removing it.
func (q *Queue) Peek() (*Event, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	return q.events[0], true
}

func (q *Queue) String() string {
	return fmt.Sprintf("eventqueue(len=%d, nextSeq=%d)", q.Len(), q.nextSeq)
}
