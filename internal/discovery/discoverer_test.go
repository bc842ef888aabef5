package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btp/internal/domain"
	"btp/internal/execution"
)

type fakeRunner struct {
	out  execution.Output
	err  error
	proc execution.Proc
}

func (f *fakeRunner) Output(_ context.Context, proc execution.Proc) (execution.Output, error) {
	f.proc = proc
	return f.out, f.err
}

func TestDiscover(t *testing.T) {
	runner := &fakeRunner{out: execution.Output{Stderr: []byte(boostDOT)}}
	target := testTarget()
	target.Env = []domain.EnvVar{{Name: "A", Value: "1"}}

	tree, err := NewDiscoverer(runner).Discover(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, Args, runner.proc.Args)
	assert.Equal(t, "/build", runner.proc.Dir)
	assert.Equal(t, []string{"A=1"}, runner.proc.Env)
}

func TestDiscoverFailuresGiveErrorTree(t *testing.T) {
	launchErr := &domain.BinaryLaunchError{Path: "/build/unit_tests", Err: errors.New("permission denied")}
	tests := []struct {
		name   string
		runner *fakeRunner
		check  func(t *testing.T, err error)
	}{
		{
			name:   "launch error",
			runner: &fakeRunner{err: launchErr},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, launchErr)
			},
		},
		{
			name:   "non-zero exit",
			runner: &fakeRunner{out: execution.Output{ExitCode: 200, Stderr: []byte("unknown option\nusage")}},
			check: func(t *testing.T, err error) {
				var formatErr *domain.DiscoveryFormatError
				require.ErrorAs(t, err, &formatErr)
				assert.Contains(t, formatErr.Reason, "code 200: unknown option")
			},
		},
		{
			name:   "not a graph",
			runner: &fakeRunner{out: execution.Output{Stderr: []byte("Test setup error")}},
			check: func(t *testing.T, err error) {
				var formatErr *domain.DiscoveryFormatError
				assert.ErrorAs(t, err, &formatErr)
			},
		},
		{
			name:   "bad label",
			runner: &fakeRunner{out: execution.Output{Stderr: []byte(`digraph { a -> b [label="x"]; b [label="nope"] }`)}},
			check: func(t *testing.T, err error) {
				var labelErr *domain.LabelFormatError
				assert.ErrorAs(t, err, &labelErr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := NewDiscoverer(tt.runner).Discover(context.Background(), testTarget())
			require.Error(t, err)
			tt.check(t, err)

			require.NotNil(t, tree)
			assert.True(t, tree.Failed())
			assert.Equal(t, 1, tree.Len())
			assert.Equal(t, err.Error(), tree.RootNode().Error)
		})
	}
}
