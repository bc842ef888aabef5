// Package monitor maps the live output of a test run onto the discovered tree.
package monitor

import (
	"strings"

	"github.com/charmbracelet/log"

	"btp/internal/domain"
	"btp/internal/logger"
	"btp/internal/parser"
)

// State is the structural position of the monitor in the run log.
type State int

const (
	StateIdle State = iota
	StateInSuite
	StateInCase
)

func (s State) String() string {
	switch s {
	case StateInSuite:
		return "in-suite"
	case StateInCase:
		return "in-case"
	default:
		return "idle"
	}
}

// incompleteMessage is attached to a case that was closed without its leave event.
const incompleteMessage = "test case did not finish: no leave event before the next test unit or end of output"

// Monitor is the state machine of one run session. It must be fed the lines of
// a single stdout stream in order and is not safe for concurrent use.
type Monitor struct {
	target   *domain.Target
	tree     *domain.Tree
	reporter Reporter
	parser   parser.Parser
	log      *log.Logger

	path     []string
	state    State
	pending  []domain.Message
	desynced bool
	summary  Summary
}

// New creates a monitor for a run of target against its current tree.
func New(target *domain.Target, tree *domain.Tree, reporter Reporter, p parser.Parser) *Monitor {
	return &Monitor{
		target:   target,
		tree:     tree,
		reporter: reporter,
		parser:   p,
		log:      logger.WithComponent("monitor").With("target", target.ID),
		path:     []string{target.ID},
		state:    StateIdle,
	}
}

// State returns the current structural state.
func (m *Monitor) State() State {
	return m.state
}

// Desynced reports whether structural interpretation was abandoned for this run.
func (m *Monitor) Desynced() bool {
	return m.desynced
}

// CurrentID returns the id of the innermost open test unit.
func (m *Monitor) CurrentID() string {
	return strings.Join(m.path, "/")
}

// Feed processes one stdout line.
func (m *Monitor) Feed(line string) {
	m.reporter.Output(m.target.ID, line)

	ev := m.parser.Classify(line)
	if ev.Kind == domain.EventNone || m.desynced {
		return
	}

	switch ev.Kind {
	case domain.EventEnterSuite, domain.EventEnterCase:
		m.enter(ev)
	case domain.EventLeaveCase:
		m.leaveCase(ev)
	case domain.EventLeaveSuite:
		m.leaveSuite(ev)
	case domain.EventCaseError, domain.EventCaseFatalError:
		m.addError(ev)
	}
}

// Close finishes a run whose output ended naturally. A case still open at this
// point is reported errored. The summary of the run is returned.
func (m *Monitor) Close() Summary {
	if m.state == StateInCase && !m.desynced {
		m.forceClose()
	}
	return m.summary
}

// Summary returns the results collected so far.
func (m *Monitor) Summary() Summary {
	return m.summary
}

func (m *Monitor) enter(ev domain.Event) {
	if m.state == StateInCase {
		m.forceClose()
	}
	m.path = append(m.path, ev.Name)
	if ev.Kind == domain.EventEnterCase {
		m.state = StateInCase
	} else {
		m.state = StateInSuite
	}
	if node, ok := m.node(m.CurrentID()); ok {
		m.summary.record(node, domain.StatusStarted, nil, 0)
		m.reporter.Started(node)
	}
}

func (m *Monitor) leaveCase(ev domain.Event) {
	// Checked before popping: a case leave naming the open suite would match
	// the top of the path and report the suite as a passed case.
	if m.state != StateInCase {
		m.desync(ev, "leave event for a test case that is not open")
		return
	}
	id := m.CurrentID()
	if !m.pop(ev) {
		return
	}

	msgs := m.pending
	m.pending = nil
	node, ok := m.node(id)
	if !ok {
		return
	}
	if len(msgs) == 0 {
		m.summary.record(node, domain.StatusPassed, nil, ev.Duration)
		m.reporter.Passed(node, ev.Duration)
		return
	}
	m.summary.record(node, domain.StatusFailed, msgs, ev.Duration)
	m.reporter.Failed(node, msgs, ev.Duration)
}

func (m *Monitor) leaveSuite(ev domain.Event) {
	if m.state == StateInCase {
		m.forceClose()
	}
	id := m.CurrentID()
	if !m.pop(ev) {
		return
	}
	if node, ok := m.node(id); ok {
		m.summary.record(node, domain.StatusPassed, nil, ev.Duration)
		m.reporter.Passed(node, ev.Duration)
	}
}

func (m *Monitor) addError(ev domain.Event) {
	if m.state != StateInCase {
		m.log.Warn("Inconsistent run output: error reported outside of a test case",
			"path", ev.Name, "current", m.CurrentID(), "message", ev.Message)
		return
	}
	msg := domain.Message{Text: ev.Message, Fatal: ev.Kind == domain.EventCaseFatalError}
	if ev.File != parser.UnknownLocation {
		msg.File = m.target.ResolveSource(ev.File)
		msg.Line = ev.Line - 1
		msg.HasLocation = true
	}
	m.pending = append(m.pending, msg)
}

// forceClose reports the open case as errored. This is how a binary that
// aborted a case without its leave event is recovered from.
func (m *Monitor) forceClose() {
	id := m.CurrentID()
	msgs := append(m.pending, domain.Message{Text: incompleteMessage})
	m.pending = nil
	m.path = m.path[:len(m.path)-1]
	m.settle()

	if node, ok := m.node(id); ok {
		m.summary.record(node, domain.StatusErrored, msgs, 0)
		m.reporter.Errored(node, msgs)
	}
}

// pop removes the innermost unit, checking it against the leave event name.
func (m *Monitor) pop(ev domain.Event) bool {
	if len(m.path) <= 1 {
		m.desync(ev, "leave event with no open test unit")
		return false
	}
	top := m.path[len(m.path)-1]
	m.path = m.path[:len(m.path)-1]
	if top != ev.Name {
		m.desync(ev, "leave event does not match the open test unit "+top)
		return false
	}
	m.settle()
	return true
}

func (m *Monitor) settle() {
	if len(m.path) > 1 {
		m.state = StateInSuite
	} else {
		m.state = StateIdle
	}
}

func (m *Monitor) desync(ev domain.Event, reason string) {
	m.desynced = true
	m.log.Warn("Run output out of sync, ignoring the rest of this run's structure",
		"reason", reason, "event", ev.Kind, "name", ev.Name)
}

func (m *Monitor) node(id string) (*domain.Node, bool) {
	n, ok := m.tree.Lookup(id)
	if !ok {
		logger.Bug("Test node not found in tree", "target", m.target.ID, "id", id)
	}
	return n, ok
}
