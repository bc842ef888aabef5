package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btp/internal/domain"
	"btp/internal/execution"
	"btp/internal/launch"
)

// The test binary doubles as a fake Boost test binary when fakeEnv is set.
const (
	fakeEnv      = "BTP_FAKE_BOOST"
	scenarioEnv  = "BTP_FAKE_SCENARIO"
	argsFileEnv  = "BTP_FAKE_ARGS"
	fakeExitCode = 201
)

const fakeDOT = `digraph G {rankdir=LR;
tu1[shape=Mrecord,fontname="Helvetica",color=green,label="unit"];
{
tu2[shape=Mrecord,fontname="Helvetica",color=green,label="math|math.cpp(3)"];
tu1 -> tu2;
{
tu3[shape=Mrecord,fontname="Helvetica",color=green,label="add|math.cpp(5)"];
tu2 -> tu3;
tu4[shape=Mrecord,fontname="Helvetica",color=green,label="sub|math.cpp(10)"];
tu2 -> tu4;
}
}
}
`

func TestMain(m *testing.M) {
	if os.Getenv(fakeEnv) != "" {
		os.Exit(fakeBoost(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeBoost(args []string) int {
	if f := os.Getenv(argsFileEnv); f != "" {
		_ = os.WriteFile(f, []byte(strings.Join(args, "\n")), 0644)
	}
	if slices.Contains(args, "--list_content=DOT") {
		fmt.Fprint(os.Stderr, fakeDOT)
		return 0
	}

	fmt.Println("Running 2 test cases...")
	fmt.Println(`Entering test module "unit"`)
	fmt.Println(`math.cpp(3): Entering test suite "math"`)
	switch os.Getenv(scenarioEnv) {
	case "crash":
		fmt.Println(`math.cpp(10): Entering test case "sub"`)
		fmt.Fprintln(os.Stderr, "unexpected exception")
		return 3
	case "hang":
		fmt.Println(`math.cpp(5): Entering test case "add"`)
		time.Sleep(time.Minute)
		return 0
	}
	fmt.Println(`math.cpp(5): Entering test case "add"`)
	fmt.Println(`math.cpp(5): Leaving test case "add"; testing time: 120us`)
	fmt.Println(`math.cpp(10): Entering test case "sub"`)
	fmt.Println(`math.cpp(12): error: in "math/sub": check a - b == 1 has failed [2 != 1]`)
	fmt.Println(`math.cpp(10): Leaving test case "sub"; testing time: 85us`)
	fmt.Println(`math.cpp(3): Leaving test suite "math"; testing time: 300us`)
	fmt.Println(`Leaving test module "unit"; testing time: 400us`)
	fmt.Fprintln(os.Stderr, "*** 1 failure is detected in the test module \"unit\"")
	return fakeExitCode
}

func fakeTarget(t *testing.T, id, scenario string) *domain.Target {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	return &domain.Target{
		ID:   id,
		Path: exe,
		Env: []domain.EnvVar{
			{Name: fakeEnv, Value: "1"},
			{Name: scenarioEnv, Value: scenario},
		},
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	statuses map[string]domain.Status
	messages map[string][]domain.Message
	lines    int
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{
		statuses: make(map[string]domain.Status),
		messages: make(map[string][]domain.Message),
	}
}

func (r *recordingReporter) set(node *domain.Node, s domain.Status, msgs []domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[node.ID] = s
	if msgs != nil {
		r.messages[node.ID] = msgs
	}
}

func (r *recordingReporter) Started(n *domain.Node) { r.set(n, domain.StatusStarted, nil) }
func (r *recordingReporter) Passed(n *domain.Node, _ time.Duration) {
	r.set(n, domain.StatusPassed, nil)
}
func (r *recordingReporter) Failed(n *domain.Node, msgs []domain.Message, _ time.Duration) {
	r.set(n, domain.StatusFailed, msgs)
}
func (r *recordingReporter) Errored(n *domain.Node, msgs []domain.Message) {
	r.set(n, domain.StatusErrored, msgs)
}
func (r *recordingReporter) Output(string, string) {
	r.mu.Lock()
	r.lines++
	r.mu.Unlock()
}

func (r *recordingReporter) status(id string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

type sinkRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (s *sinkRecorder) TreeReplaced(id string, _ *domain.Tree) {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

type memoryStorage struct {
	records []*domain.RunRecord
}

func (m *memoryStorage) Save(r *domain.RunRecord) error {
	m.records = append(m.records, r)
	return nil
}

func (m *memoryStorage) Load() (*domain.RunRecord, error) {
	if len(m.records) == 0 {
		return nil, errors.New("no runs")
	}
	return m.records[len(m.records)-1], nil
}

func newCoordinator(t *testing.T, opts Options, targets ...*domain.Target) *Coordinator {
	t.Helper()
	opts.Runner = execution.NewRunner()
	opts.Workers = 2
	c := New(opts)
	require.NoError(t, c.Load(context.Background(), targets))
	return c
}

func TestLoadDiscoversTrees(t *testing.T) {
	sink := &sinkRecorder{}
	c := newCoordinator(t, Options{Sink: sink}, fakeTarget(t, "unit", ""), fakeTarget(t, "other", ""))

	assert.ElementsMatch(t, []string{"unit", "other"}, sink.ids)
	target, ok := c.Target("unit")
	require.True(t, ok)
	assert.Equal(t, 4, target.Tree.Len())
	assert.Equal(t, "unit", target.Tree.RootNode().Label)

	add, ok := target.Tree.Lookup("unit/math/add")
	require.True(t, ok)
	assert.Equal(t, domain.KindCase, add.Kind)
	assert.Equal(t, 4, add.SourceLine)
	assert.Equal(t, "math.cpp", filepath.Base(add.SourceFile))
}

func TestLoadDiscoveryFailureGivesErrorTree(t *testing.T) {
	c := New(Options{Runner: execution.NewRunner()})
	missing := &domain.Target{ID: "missing", Path: filepath.Join(t.TempDir(), "no-such-binary")}

	err := c.Load(context.Background(), []*domain.Target{missing})
	var launchErr *domain.BinaryLaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.True(t, missing.Tree.Failed())
	assert.Equal(t, 1, missing.Tree.Len())
}

func TestRunReportsCaseResults(t *testing.T) {
	store := &memoryStorage{}
	argsFile := filepath.Join(t.TempDir(), "args")
	target := fakeTarget(t, "unit", "")
	c := newCoordinator(t, Options{Storage: store}, target)
	target.Env = append(target.Env, domain.EnvVar{Name: argsFileEnv, Value: argsFile})

	reporter := newRecordingReporter()
	record, err := c.Run(context.Background(), nil, reporter)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPassed, reporter.status("unit/math/add"))
	assert.Equal(t, domain.StatusFailed, reporter.status("unit/math/sub"))
	assert.Equal(t, domain.StatusPassed, reporter.status("unit/math"))
	msgs := reporter.messages["unit/math/sub"]
	require.Len(t, msgs, 1)
	assert.Equal(t, "check a - b == 1 has failed [2 != 1]", msgs[0].Text)
	assert.Equal(t, 11, msgs[0].Line)
	assert.True(t, msgs[0].HasLocation)
	assert.Equal(t, 10, reporter.lines)

	assert.Equal(t, 1, record.Meta.PassedCases)
	assert.Equal(t, 1, record.Meta.FailedCases)
	require.Len(t, record.Targets, 1)
	assert.Equal(t, fakeExitCode, record.Targets[0].ExitCode)
	assert.Len(t, record.Targets[0].StderrHead, 1)
	assert.NotEmpty(t, record.Meta.RunID)
	require.Len(t, store.records, 1)
	assert.Same(t, record, store.records[0])

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, RunArgs, strings.Split(string(args), "\n"))
}

func TestRunComposesFilter(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	target := fakeTarget(t, "unit", "")
	c := newCoordinator(t, Options{}, target)
	target.Env = append(target.Env, domain.EnvVar{Name: argsFileEnv, Value: argsFile})

	_, err := c.Run(context.Background(), []domain.SelectionItem{
		{ID: "unit/math"},
		{ID: "unit/math/add"},
		{ID: "unit/math/sub", Excluded: true},
	}, newRecordingReporter())
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	want := append(slices.Clone(RunArgs), "-t", "math:!math/sub")
	assert.Equal(t, want, strings.Split(string(args), "\n"))
}

func TestRunCrashedCaseIsErrored(t *testing.T) {
	c := newCoordinator(t, Options{}, fakeTarget(t, "unit", "crash"))

	reporter := newRecordingReporter()
	record, err := c.Run(context.Background(), nil, reporter)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusErrored, reporter.status("unit/math/sub"))
	assert.Equal(t, 1, record.Meta.ErroredCases)
	assert.Equal(t, 3, record.Targets[0].ExitCode)
	assert.Equal(t, []string{"unexpected exception"}, record.Targets[0].StderrHead)
}

func TestRunEmptySelection(t *testing.T) {
	c := newCoordinator(t, Options{}, fakeTarget(t, "unit", ""))

	_, err := c.Run(context.Background(), []domain.SelectionItem{{ID: "ghost/case"}}, newRecordingReporter())
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestRunSkipsExcludedRoot(t *testing.T) {
	c := newCoordinator(t, Options{}, fakeTarget(t, "unit", ""))

	reporter := newRecordingReporter()
	record, err := c.Run(context.Background(), []domain.SelectionItem{{ID: "unit", Excluded: true}}, reporter)
	require.NoError(t, err)
	assert.Equal(t, 0, reporter.lines)
	assert.Equal(t, "excluded", record.Targets[0].Error)
}

func TestSecondRunIsRejectedAndCancelKills(t *testing.T) {
	c := newCoordinator(t, Options{}, fakeTarget(t, "unit", "hang"))

	first := newRecordingReporter()
	done := make(chan *domain.RunRecord, 1)
	go func() {
		record, err := c.Run(context.Background(), nil, first)
		assert.NoError(t, err)
		done <- record
	}()
	require.Eventually(t, func() bool {
		return first.status("unit/math/add") == domain.StatusStarted
	}, 10*time.Second, 10*time.Millisecond)

	second := newRecordingReporter()
	record, err := c.Run(context.Background(), nil, second)
	require.NoError(t, err)
	assert.True(t, record.Targets[0].Rejected)
	assert.Equal(t, 0, second.lines)

	assert.Equal(t, 1, c.Cancel())
	select {
	case record := <-done:
		assert.True(t, record.Targets[0].Cancelled)
		assert.Equal(t, 0, record.Meta.ErroredCases)
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled run did not finish")
	}
	assert.Equal(t, domain.StatusStarted, first.status("unit/math/add"))
}

func writeLaunchFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".vscode", "launch.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	doc := map[string]any{
		"version": "0.2.0",
		"configurations": []any{
			map[string]any{"name": "debug unit", "type": "cppdbg", "request": "launch"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestDebugPreparesProfile(t *testing.T) {
	launchFile := writeLaunchFile(t)
	target := fakeTarget(t, "unit", "")
	target.DebugProfile = "debug unit"
	c := newCoordinator(t, Options{LaunchFile: launchFile}, target)

	profile, err := c.Debug(context.Background(), []domain.SelectionItem{{ID: "unit/math/add"}})
	require.NoError(t, err)
	assert.Equal(t, target.Path, profile["program"])
	assert.Equal(t, append(slices.Clone(DebugArgs), "-t", "math/add"), profile["args"])
	assert.Equal(t, "std", profile["outputCapture"])
	assert.Equal(t, "cppdbg", profile["type"])

	saved, err := launch.Load(launchFile)
	require.NoError(t, err)
	p, err := saved.Profile("debug unit")
	require.NoError(t, err)
	assert.Equal(t, target.Path, p["program"])
	env, ok := p["environment"].([]any)
	require.True(t, ok)
	assert.Len(t, env, 2)
}

func TestDebugRejections(t *testing.T) {
	launchFile := writeLaunchFile(t)
	unit := fakeTarget(t, "unit", "")
	unit.DebugProfile = "missing profile"
	other := fakeTarget(t, "other", "")
	c := newCoordinator(t, Options{LaunchFile: launchFile}, unit, other)

	_, err := c.Debug(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrMultiTargetDebug)

	_, err = c.Debug(context.Background(), []domain.SelectionItem{{ID: "other/math"}})
	assert.ErrorIs(t, err, domain.ErrNoDebugProfile)

	_, err = c.Debug(context.Background(), []domain.SelectionItem{{ID: "unit/math"}})
	var notFound *domain.ProfileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing profile", notFound.Name)
}

func TestDebugExcludedRootLeavesProfileUntouched(t *testing.T) {
	launchFile := writeLaunchFile(t)
	target := fakeTarget(t, "unit", "")
	target.DebugProfile = "debug unit"
	c := newCoordinator(t, Options{LaunchFile: launchFile}, target)

	_, err := c.Debug(context.Background(), []domain.SelectionItem{
		{ID: domain.AllTargetsID},
		{ID: "unit", Excluded: true},
	})
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	saved, err := launch.Load(launchFile)
	require.NoError(t, err)
	p, err := saved.Profile("debug unit")
	require.NoError(t, err)
	assert.Nil(t, p["program"])
	assert.Nil(t, p["args"])
}

func TestDebugRejectsFailedDiscovery(t *testing.T) {
	launchFile := writeLaunchFile(t)
	missing := &domain.Target{
		ID:           "missing",
		Path:         filepath.Join(t.TempDir(), "no-such-binary"),
		DebugProfile: "debug unit",
	}
	c := New(Options{Runner: execution.NewRunner(), LaunchFile: launchFile})
	require.Error(t, c.Load(context.Background(), []*domain.Target{missing}))

	_, err := c.Debug(context.Background(), []domain.SelectionItem{{ID: "missing"}})
	assert.ErrorIs(t, err, domain.ErrDiscoveryFailed)

	saved, err := launch.Load(launchFile)
	require.NoError(t, err)
	p, err := saved.Profile("debug unit")
	require.NoError(t, err)
	assert.Nil(t, p["program"])
}

func TestReloadUnknownTarget(t *testing.T) {
	c := newCoordinator(t, Options{}, fakeTarget(t, "unit", ""))

	assert.Error(t, c.Reload(context.Background(), "ghost"))
	require.NoError(t, c.Reload(context.Background(), "unit"))
}
