package monitor

import (
	"time"

	"btp/internal/domain"
)

// Reporter receives the state changes of a run. Implementations are provided by
// the host presentation layer.
type Reporter interface {
	Started(node *domain.Node)
	Passed(node *domain.Node, d time.Duration)
	Failed(node *domain.Node, msgs []domain.Message, d time.Duration)
	Errored(node *domain.Node, msgs []domain.Message)
	// Output receives every raw stdout line, recognized or not.
	Output(targetID, line string)
}

// MultiReporter fans out every call to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Started(node *domain.Node) {
	for _, r := range m {
		r.Started(node)
	}
}

func (m MultiReporter) Passed(node *domain.Node, d time.Duration) {
	for _, r := range m {
		r.Passed(node, d)
	}
}

func (m MultiReporter) Failed(node *domain.Node, msgs []domain.Message, d time.Duration) {
	for _, r := range m {
		r.Failed(node, msgs, d)
	}
}

func (m MultiReporter) Errored(node *domain.Node, msgs []domain.Message) {
	for _, r := range m {
		r.Errored(node, msgs)
	}
}

func (m MultiReporter) Output(targetID, line string) {
	for _, r := range m {
		r.Output(targetID, line)
	}
}
