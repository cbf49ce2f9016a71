package csg

import "fmt"

// EventKind names a lifecycle notification.
type EventKind int

const (
	Started EventKind = iota
	Progressed
	Finished
	Failed
	Discarded
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Progressed:
		return "progressed"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a lifecycle notification for one request of one instance.
type Event struct {
	Instance string
	Request  uint64
	Kind     EventKind
	Percent  int   // Progressed only
	Err      error // Failed only
	// Fallback is set on Finished and Failed events produced by the
	// synchronous fallback evaluation.
	Fallback bool
}

// Listener receives lifecycle events. Calls may come from any goroutine
// but never while a controller lock is held.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent calls f(e).
func (f ListenerFunc) OnEvent(e Event) { f(e) }

func emit(l Listener, events []Event) {
	if l == nil {
		return
	}
	for _, e := range events {
		l.OnEvent(e)
	}
}
