package parser

import "btp/internal/domain"

// Parser turns one line of a run's output into an execution event.
type Parser interface {
	Classify(line string) domain.Event
}
