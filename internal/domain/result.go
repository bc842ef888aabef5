package domain

import "time"

// Status is the reported state of a node in a run.
type Status string

const (
	StatusStarted Status = "started"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// NodeResult is the last reported state of one node.
type NodeResult struct {
	ID       string        `json:"id"`
	Status   Status        `json:"status"`
	Messages []Message     `json:"messages,omitempty"`
	Duration time.Duration `json:"duration"`
}

// TargetRun describes how one target's process ended.
type TargetRun struct {
	TargetID   string   `json:"target_id"`
	Filter     []string `json:"filter,omitempty"`
	ExitCode   int      `json:"exit_code"`
	Cancelled  bool     `json:"cancelled,omitempty"`
	Rejected   bool     `json:"rejected,omitempty"`
	Error      string   `json:"error,omitempty"`
	StderrHead []string `json:"stderr_head,omitempty"`
}

// RunMeta contains metadata about a run
type RunMeta struct {
	RunID           string  `json:"run_id"`
	Targets         int     `json:"targets"`
	PassedCases     int     `json:"passed_cases"`
	FailedCases     int     `json:"failed_cases"`
	ErroredCases    int     `json:"errored_cases"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// RunRecord is the complete stored result of a run.
type RunRecord struct {
	Meta    RunMeta      `json:"meta"`
	Targets []TargetRun  `json:"targets"`
	Results []NodeResult `json:"results"`
}

// Result returns the stored result for a node id.
func (r *RunRecord) Result(id string) (NodeResult, bool) {
	if r == nil {
		return NodeResult{}, false
	}
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return NodeResult{}, false
}
