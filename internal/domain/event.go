package domain

import "time"

// EventKind identifies the kind of a line in a run's output log.
type EventKind int

const (
	EventNone EventKind = iota
	EventEnterSuite
	EventLeaveSuite
	EventEnterCase
	EventLeaveCase
	EventCaseError
	EventCaseFatalError
)

func (k EventKind) String() string {
	switch k {
	case EventEnterSuite:
		return "enter-suite"
	case EventLeaveSuite:
		return "leave-suite"
	case EventEnterCase:
		return "enter-case"
	case EventLeaveCase:
		return "leave-case"
	case EventCaseError:
		return "error"
	case EventCaseFatalError:
		return "fatal-error"
	default:
		return "none"
	}
}

// Event is one recognized line of a run's output.
type Event struct {
	Kind     EventKind
	Name     string // suite or case name for enter/leave, test path for errors
	File     string
	Line     int // as reported, 1-based
	Message  string
	Duration time.Duration
}

// IsError reports whether the event attaches a message to the open case.
func (e Event) IsError() bool {
	return e.Kind == EventCaseError || e.Kind == EventCaseFatalError
}
