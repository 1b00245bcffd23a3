// Package event defines the progress events a sync run emits for
// presenters.
package event

import (
	"time"

	"github.com/bamsammich/treesync/internal/plan"
)

// Type identifies the kind of event.
type Type int

const (
	CycleStarted Type = iota + 1
	ScanComplete
	PlanReady
	ActionStarted
	ActionCompleted
	ActionFailed
	ActionSkipped
	ScanWarning
	CycleComplete
)

var typeNames = [...]string{
	CycleStarted:    "CycleStarted",
	ScanComplete:    "ScanComplete",
	PlanReady:       "PlanReady",
	ActionStarted:   "ActionStarted",
	ActionCompleted: "ActionCompleted",
	ActionFailed:    "ActionFailed",
	ActionSkipped:   "ActionSkipped",
	ScanWarning:     "ScanWarning",
	CycleComplete:   "CycleComplete",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event.
type Event struct {
	Timestamp time.Time
	Error     error
	Path      string // destination-relative path
	From      string // rename origin
	Reason    string
	Total     int64  // actions that change the destination (PlanReady)
	TotalSize int64  // bytes to transfer (PlanReady)
	Size      int64
	Kind      plan.Kind
	Type      Type
	WorkerID  int
	DryRun    bool
}

// FromAction fills the action fields of an event.
func FromAction(typ Type, a plan.Action) Event {
	return Event{
		Type:   typ,
		Kind:   a.Kind,
		Path:   a.Entry.String(),
		From:   a.From,
		Reason: a.Reason,
		Size:   int64(a.Entry.Size), //nolint:gosec // G115: file sizes fit in int64
	}
}

// Sink delivers events to a channel. A nil Sink or nil channel discards
// events. Sends block until the receiver takes the event or done closes,
// so presenters see every action.
type Sink struct {
	C    chan<- Event
	Done <-chan struct{}
}

// Emit stamps e and delivers it.
func (s Sink) Emit(e Event) {
	if s.C == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case s.C <- e:
	case <-s.Done:
	}
}
