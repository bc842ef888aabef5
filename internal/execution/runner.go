package execution

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"btp/internal/domain"
	"btp/internal/logger"
)

const (
	// StderrHeadLines is the number of stderr lines kept for failure reports.
	StderrHeadLines = 100
	maxLineBytes    = 1024 * 1024
)

// Proc describes a process to launch.
type Proc struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the current process environment; later entries win.
	Env []string
	// Stderr, when set, receives every stderr line.
	Stderr func(line string)
}

// Exit is the outcome of a finished process.
type Exit struct {
	Code int
	Err  error
}

// Output is the captured result of a short-lived command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Session is one live run of a target binary.
type Session struct {
	TargetID string

	cmd       *exec.Cmd
	cancel    context.CancelFunc
	lines     chan string
	stderr    *headBuffer
	done      chan struct{}
	exit      Exit
	cancelled atomic.Bool
	drained   atomic.Bool // stdout reached EOF
}

// Lines streams stdout lines in the order the process wrote them.
// The channel is closed when stdout reaches EOF.
func (s *Session) Lines() <-chan string {
	return s.lines
}

// StderrHead returns the first stderr lines of the process.
func (s *Session) StderrHead() []string {
	return s.stderr.Lines()
}

// Wait blocks until the process has exited and its streams are drained.
func (s *Session) Wait() Exit {
	<-s.done
	return s.exit
}

// Done is closed once the process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Kill terminates the process without waiting for it to exit. A session whose
// stdout was already fully read is not marked cancelled, since its results are complete.
func (s *Session) Kill() {
	select {
	case <-s.done:
		return
	default:
	}
	if !s.drained.Load() {
		s.cancelled.Store(true)
	}
	s.cancel()
}

// Cancelled reports whether Kill interrupted the session before stdout ended.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Runner spawns target binaries and allows at most one session per target.
type Runner struct {
	mu       sync.Mutex
	sessions map[string]*Session
	log      *log.Logger
}

// NewRunner creates a new Runner
func NewRunner() *Runner {
	return &Runner{
		sessions: make(map[string]*Session),
		log:      logger.WithComponent("runner"),
	}
}

// Start launches a run session for targetID. A second session for the same
// target is rejected with domain.ErrSessionActive instead of being queued.
func (r *Runner) Start(ctx context.Context, targetID string, proc Proc) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[targetID]; ok {
		r.log.Warn("Rejecting run, binary is already running", "target", targetID)
		return nil, domain.ErrSessionActive
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := command(ctx, proc)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &domain.BinaryLaunchError{Path: proc.Path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, &domain.BinaryLaunchError{Path: proc.Path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &domain.BinaryLaunchError{Path: proc.Path, Err: err}
	}

	s := &Session{
		TargetID: targetID,
		cmd:      cmd,
		cancel:   cancel,
		lines:    make(chan string, 256),
		stderr:   newHeadBuffer(StderrHeadLines),
		done:     make(chan struct{}),
	}
	r.sessions[targetID] = s
	r.log.Debug("Started run session", "target", targetID, "pid", cmd.Process.Pid, "args", proc.Args)

	var scanWg sync.WaitGroup
	scanWg.Add(2)
	go func() {
		defer scanWg.Done()
		defer close(s.lines)
		r.readLines(targetID, "stdout", stdout, func(line string) { s.lines <- line })
		s.drained.Store(true)
	}()
	go func() {
		defer scanWg.Done()
		r.readLines(targetID, "stderr", stderr, func(line string) {
			s.stderr.Add(line)
			if proc.Stderr != nil {
				proc.Stderr(line)
			}
		})
	}()

	go func() {
		scanWg.Wait()
		s.exit = exitOf(cmd.Wait())
		cancel()

		r.mu.Lock()
		delete(r.sessions, targetID)
		r.mu.Unlock()

		r.log.Debug("Run session finished", "target", targetID, "code", s.exit.Code,
			"cancelled", s.Cancelled(), "stderr_dropped", s.stderr.Dropped())
		close(s.done)
	}()

	return s, nil
}

// Active reports whether targetID has a session in flight.
func (r *Runner) Active(targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[targetID]
	return ok
}

// CancelAll kills every active session and returns how many were signalled.
// It does not wait for the processes to exit.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		r.log.Info("Cancelling run", "target", id)
		s.Kill()
	}
	return len(r.sessions)
}

// Output runs a short-lived command to completion and captures its output.
// A non-zero exit code is not an error; failing to start the binary is.
func (r *Runner) Output(ctx context.Context, proc Proc) (Output, error) {
	cmd := command(ctx, proc)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Output{}, &domain.BinaryLaunchError{Path: proc.Path, Err: err}
	}
	exit := exitOf(cmd.Wait())
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: exit.Code}
	if exit.Err != nil {
		return out, exit.Err
	}
	return out, nil
}

func command(ctx context.Context, proc Proc) *exec.Cmd {
	cmd := exec.CommandContext(ctx, proc.Path, proc.Args...)
	cmd.Dir = proc.Dir
	if len(proc.Env) > 0 {
		cmd.Env = append(os.Environ(), proc.Env...)
	}
	return cmd
}

// exitOf turns the result of cmd.Wait into an exit code. Only failures that
// are not a plain non-zero exit are kept as errors.
func exitOf(err error) Exit {
	if err == nil {
		return Exit{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Exit{Code: exitErr.ExitCode()}
	}
	return Exit{Code: -1, Err: err}
}

// readLines calls fn for every line of rd until EOF. Lines longer than
// maxLineBytes are truncated, never treated as the end of the stream.
func (r *Runner) readLines(targetID, stream string, rd io.Reader, fn func(line string)) {
	br := bufio.NewReaderSize(rd, 64*1024)
	var (
		buf       []byte
		truncated bool
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(buf) > 0 {
				fn(string(buf))
			}
			if !errors.Is(err, io.EOF) {
				r.log.Warn("Failed to read process output", "target", targetID, "stream", stream, "err", err)
			}
			break
		}
		if room := maxLineBytes - len(buf); len(chunk) > room {
			chunk = chunk[:room]
			truncated = true
		}
		buf = append(buf, chunk...)
		if isPrefix {
			continue
		}
		if truncated {
			r.log.Warn("Truncated long output line", "target", targetID, "stream", stream, "limit", maxLineBytes)
		}
		fn(string(buf))
		buf = buf[:0]
		truncated = false
	}
	// keep draining so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, rd)
}
