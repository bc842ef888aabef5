package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"btp/internal/domain"
)

// ConsoleReporter prints live case results. With a progress bar attached only
// the bar is drawn; otherwise each finished case gets a line.
type ConsoleReporter struct {
	mu       sync.Mutex
	out      io.Writer
	progress *ProgressBar
	echo     bool

	passed int
	failed int
}

// NewConsoleReporter creates a reporter writing to out. When echo is set every
// raw line of the binaries' output is printed as well.
func NewConsoleReporter(out io.Writer, echo bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, echo: echo}
}

// SetProgress switches the reporter to progress bar mode.
func (r *ConsoleReporter) SetProgress(p *ProgressBar) {
	r.progress = p
}

func (r *ConsoleReporter) Started(*domain.Node) {}

func (r *ConsoleReporter) Passed(node *domain.Node, d time.Duration) {
	if node.Kind != domain.KindCase {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passed++
	if r.progress != nil {
		r.progress.Update(r.passed, r.failed)
		return
	}
	fmt.Fprintf(r.out, "%s %s%s\n", color.GreenString("✓"), node.ID, formatDuration(d))
}

func (r *ConsoleReporter) Failed(node *domain.Node, msgs []domain.Message, d time.Duration) {
	if node.Kind != domain.KindCase {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	if r.progress != nil {
		r.progress.Update(r.passed, r.failed)
		return
	}
	fmt.Fprintf(r.out, "%s %s%s\n", color.RedString("✗"), node.ID, formatDuration(d))
	r.printMessages(msgs)
}

func (r *ConsoleReporter) Errored(node *domain.Node, msgs []domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if node.Kind == domain.KindCase {
		r.failed++
	}
	if r.progress != nil {
		r.progress.Update(r.passed, r.failed)
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", color.YellowString("!"), node.ID)
	r.printMessages(msgs)
}

func (r *ConsoleReporter) Output(targetID, line string) {
	if !r.echo {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", color.HiBlackString("[%s]", targetID), line)
}

// Finish closes the progress bar, if any.
func (r *ConsoleReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		r.progress.Finish()
	}
}

func (r *ConsoleReporter) printMessages(msgs []domain.Message) {
	for _, m := range msgs {
		fmt.Fprintf(r.out, "    %s\n", formatMessage(m))
	}
}

// TreeReplaced prints a one-line note when a target was rediscovered.
func (r *ConsoleReporter) TreeReplaced(targetID string, tree *domain.Tree) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tree.Failed() {
		fmt.Fprintf(r.out, "%s %s: %s\n", color.RedString("discovery failed"), targetID, tree.RootNode().Error)
		return
	}
	fmt.Fprintf(r.out, "%s %s: %d test case(s)\n", color.CyanString("discovered"), targetID, tree.Cases(tree.Root))
}

func formatMessage(m domain.Message) string {
	var b strings.Builder
	if m.HasLocation {
		fmt.Fprintf(&b, "%s:%d: ", m.File, m.Line+1)
	}
	if m.Fatal {
		b.WriteString("fatal: ")
	}
	b.WriteString(m.Text)
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return " " + color.HiBlackString("(%s)", d)
}
