package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btp/internal/domain"
)

const helperEnv = "BTP_HELPER_MODE"

// TestMain lets the test binary stand in for a test executable.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(helper(mode))
	}
	os.Exit(m.Run())
}

func helper(mode string) int {
	switch mode {
	case "lines":
		for i := 0; i < 5; i++ {
			fmt.Printf("line %d\n", i)
		}
		for i := 0; i < 150; i++ {
			fmt.Fprintf(os.Stderr, "err %d\n", i)
		}
		return 2
	case "sleep":
		fmt.Println("ready")
		time.Sleep(time.Minute)
		return 0
	case "long":
		fmt.Println("before")
		fmt.Println(strings.Repeat("x", 2_000_000))
		fmt.Println("after")
		return 0
	case "closed-stdout":
		fmt.Println("done")
		os.Stdout.Close()
		time.Sleep(time.Minute)
		return 0
	case "env":
		wd, _ := os.Getwd()
		fmt.Println(os.Getenv("BTP_HELPER_VALUE"))
		fmt.Println(wd)
		fmt.Fprint(os.Stderr, "to stderr")
		return 0
	}
	return 99
}

func helperProc(t *testing.T, mode string) Proc {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	return Proc{Path: exe, Env: []string{helperEnv + "=" + mode}}
}

func collect(s *Session) []string {
	var lines []string
	for l := range s.Lines() {
		lines = append(lines, l)
	}
	return lines
}

func TestStartStreamsStdoutAndCapsStderr(t *testing.T) {
	var mu sync.Mutex
	stderrLines := 0
	proc := helperProc(t, "lines")
	proc.Stderr = func(string) {
		mu.Lock()
		stderrLines++
		mu.Unlock()
	}

	s, err := NewRunner().Start(context.Background(), "unit", proc)
	require.NoError(t, err)

	assert.Equal(t, []string{"line 0", "line 1", "line 2", "line 3", "line 4"}, collect(s))
	exit := s.Wait()
	assert.Equal(t, 2, exit.Code)
	assert.NoError(t, exit.Err)
	assert.False(t, s.Cancelled())

	head := s.StderrHead()
	require.Len(t, head, StderrHeadLines)
	assert.Equal(t, "err 0", head[0])
	assert.Equal(t, "err 99", head[99])
	mu.Lock()
	assert.Equal(t, 150, stderrLines)
	mu.Unlock()
}

func TestStartMissingBinary(t *testing.T) {
	r := NewRunner()
	path := filepath.Join(t.TempDir(), "missing")

	_, err := r.Start(context.Background(), "unit", Proc{Path: path})
	var launchErr *domain.BinaryLaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, path, launchErr.Path)
	assert.False(t, r.Active("unit"))
}

func TestSecondSessionIsRejected(t *testing.T) {
	r := NewRunner()
	first, err := r.Start(context.Background(), "unit", helperProc(t, "sleep"))
	require.NoError(t, err)
	assert.Equal(t, "ready", <-first.Lines())
	assert.True(t, r.Active("unit"))

	_, err = r.Start(context.Background(), "unit", helperProc(t, "lines"))
	assert.ErrorIs(t, err, domain.ErrSessionActive)

	other, err := r.Start(context.Background(), "other", helperProc(t, "lines"))
	require.NoError(t, err)
	collect(other)
	other.Wait()

	assert.Equal(t, 1, r.CancelAll())
	select {
	case <-first.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled session did not exit")
	}
	assert.True(t, first.Cancelled())
	assert.NotEqual(t, 0, first.Wait().Code)
	assert.False(t, r.Active("unit"))

	again, err := r.Start(context.Background(), "unit", helperProc(t, "lines"))
	require.NoError(t, err)
	collect(again)
	assert.Equal(t, 2, again.Wait().Code)
}

func TestLongLineIsTruncatedAndStreamContinues(t *testing.T) {
	s, err := NewRunner().Start(context.Background(), "unit", helperProc(t, "long"))
	require.NoError(t, err)

	lines := collect(s)
	require.Len(t, lines, 3)
	assert.Equal(t, "before", lines[0])
	assert.Len(t, lines[1], maxLineBytes)
	assert.Equal(t, "after", lines[2])
	assert.Equal(t, 0, s.Wait().Code)
}

func TestKillAfterStdoutEndedIsNotCancellation(t *testing.T) {
	r := NewRunner()
	s, err := r.Start(context.Background(), "unit", helperProc(t, "closed-stdout"))
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, collect(s))

	assert.Equal(t, 1, r.CancelAll())
	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("killed session did not exit")
	}
	assert.False(t, s.Cancelled())

	// a finished session ignores Kill
	s.Kill()
	assert.False(t, s.Cancelled())
}

func TestStartPassesEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	proc := helperProc(t, "env")
	proc.Dir = dir
	proc.Env = append(proc.Env, "BTP_HELPER_VALUE=42")

	s, err := NewRunner().Start(context.Background(), "unit", proc)
	require.NoError(t, err)
	lines := collect(s)
	require.Len(t, lines, 2)
	assert.Equal(t, "42", lines[0])

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[1])
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"to stderr"}, s.StderrHead())
}

func TestOutput(t *testing.T) {
	r := NewRunner()

	out, err := r.Output(context.Background(), helperProc(t, "env"))
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "to stderr", string(out.Stderr))
	assert.True(t, strings.HasPrefix(string(out.Stdout), "\n"))

	out, err = r.Output(context.Background(), helperProc(t, "lines"))
	require.NoError(t, err)
	assert.Equal(t, 2, out.ExitCode)

	_, err = r.Output(context.Background(), Proc{Path: filepath.Join(t.TempDir(), "missing")})
	var launchErr *domain.BinaryLaunchError
	assert.ErrorAs(t, err, &launchErr)
}

func TestHeadBuffer(t *testing.T) {
	b := newHeadBuffer(2)
	for _, l := range []string{"a", "b", "c", "d"} {
		b.Add(l)
	}
	assert.Equal(t, []string{"a", "b"}, b.Lines())
	assert.Equal(t, 2, b.Dropped())
}

type countingProgress struct {
	mu       sync.Mutex
	updates  int
	last     [2]int
	finished bool
}

func (p *countingProgress) Update(succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates++
	p.last = [2]int{succeeded, failed}
}

func (p *countingProgress) Finish() { p.finished = true }

func TestWorkerPoolKeepsTargetOrder(t *testing.T) {
	var targets []*domain.Target
	for i := 0; i < 7; i++ {
		targets = append(targets, &domain.Target{ID: fmt.Sprintf("t%d", i)})
	}
	progress := &countingProgress{}
	pool := NewWorkerPool(3)
	pool.SetProgress(progress)

	results, _ := pool.Execute(context.Background(), targets, func(_ context.Context, target *domain.Target) JobResult {
		if target.ID == "t2" || target.ID == "t5" {
			return JobResult{Err: errors.New("boom")}
		}
		return JobResult{Tree: domain.NewTree(target.ID)}
	})

	require.Len(t, results, 7)
	for i, r := range results {
		assert.Same(t, targets[i], r.Target)
		if r.Err == nil {
			assert.Equal(t, targets[i].ID, r.Tree.Root)
		}
	}
	assert.Equal(t, 7, progress.updates)
	assert.Equal(t, [2]int{5, 2}, progress.last)
	assert.True(t, progress.finished)

	none, elapsed := pool.Execute(context.Background(), nil, nil)
	assert.Nil(t, none)
	assert.Zero(t, elapsed)
}
