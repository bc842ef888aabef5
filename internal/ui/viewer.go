package ui

import "context"

// Viewer displays test results in an interactive TUI
type Viewer interface {
	View(ctx context.Context) error
}

var _ Viewer = (*Explorer)(nil)
