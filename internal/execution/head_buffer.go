package execution

import "sync"

// headBuffer keeps only the first N lines written to it so a failing run can
// report the start of its stderr without retaining everything.
type headBuffer struct {
	maxLines int

	mu      sync.Mutex
	lines   []string
	dropped int
}

func newHeadBuffer(maxLines int) *headBuffer {
	return &headBuffer{maxLines: maxLines, lines: make([]string, 0, maxLines)}
}

func (b *headBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.maxLines {
		b.dropped++
		return
	}
	b.lines = append(b.lines, line)
}

func (b *headBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]string, len(b.lines))
	copy(cp, b.lines)
	return cp
}

func (b *headBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
