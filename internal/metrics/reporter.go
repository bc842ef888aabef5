package metrics

import (
	"time"

	"btp/internal/domain"
)

// Reporter counts case results. It implements monitor.Reporter.
type Reporter struct{}

func (Reporter) Started(*domain.Node) {}

func (Reporter) Passed(node *domain.Node, d time.Duration) {
	if node.Kind == domain.KindCase {
		RecordCase(domain.TargetOf(node.ID), domain.StatusPassed, d)
	}
}

func (Reporter) Failed(node *domain.Node, _ []domain.Message, d time.Duration) {
	if node.Kind == domain.KindCase {
		RecordCase(domain.TargetOf(node.ID), domain.StatusFailed, d)
	}
}

func (Reporter) Errored(node *domain.Node, _ []domain.Message) {
	if node.Kind == domain.KindCase {
		RecordCase(domain.TargetOf(node.ID), domain.StatusErrored, 0)
	}
}

func (Reporter) Output(string, string) {}
