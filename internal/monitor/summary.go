package monitor

import (
	"time"

	"btp/internal/domain"
)

// Summary collects the final state of every node reported in a run.
type Summary struct {
	Passed  int
	Failed  int
	Errored int
	Results []domain.NodeResult

	index map[string]int
}

func (s *Summary) record(node *domain.Node, status domain.Status, msgs []domain.Message, d time.Duration) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if node.Kind == domain.KindCase {
		switch status {
		case domain.StatusPassed:
			s.Passed++
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusErrored:
			s.Errored++
		}
	}
	result := domain.NodeResult{ID: node.ID, Status: status, Messages: msgs, Duration: d}
	if i, ok := s.index[node.ID]; ok {
		s.Results[i] = result
		return
	}
	s.index[node.ID] = len(s.Results)
	s.Results = append(s.Results, result)
}

// Status returns the last recorded status of a node.
func (s Summary) Status(id string) (domain.Status, bool) {
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.Results[i].Status, true
}
