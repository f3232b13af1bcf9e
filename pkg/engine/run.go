package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InvocationStatus is the terminal state of one scanner execution.
type InvocationStatus string

const (
	InvocationSucceeded  InvocationStatus = "succeeded"
	InvocationTimedOut   InvocationStatus = "timed-out"
	InvocationCrashed    InvocationStatus = "crashed"
	InvocationUnparsable InvocationStatus = "produced-no-parsable-output"
)

// ToolInvocation records one scanner's execution. A retried invocation
// replaces the previous record for that tool rather than appending to it.
type ToolInvocation struct {
	Tool        string           `json:"tool"`
	Version     string           `json:"version,omitempty"`
	ExitCode    int              `json:"exit_code"`
	Duration    time.Duration    `json:"duration_ns"`
	Status      InvocationStatus `json:"status"`
	Error       string           `json:"error,omitempty"`  // crash or parse error detail
	Stderr      string           `json:"stderr,omitempty"` // tail only, for audit
	Findings    int              `json:"findings"`
	RetriesUsed int              `json:"retries_used,omitempty"`
}

// Usable reports whether the invocation produced output the pipeline may
// trust. Anything else degrades the run.
func (t ToolInvocation) Usable() bool {
	return t.Status == InvocationSucceeded
}

// ScanRun is one invocation of the whole pipeline against a target path.
type ScanRun struct {
	ID          string           `json:"id"`
	Target      string           `json:"target"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    time.Duration    `json:"duration_ns"`
	Tools       []string         `json:"tools"`
	Invocations []ToolInvocation `json:"invocations"`
	Degraded    bool             `json:"degraded"`
	// DegradedReasons names each tool that failed to produce usable output,
	// in tool order, so the report never lets a silent scanner pass as clean.
	DegradedReasons []string `json:"degraded_reasons,omitempty"`
}

// NewScanRun creates the run record at pipeline start.
func NewScanRun(target string, tools []string) *ScanRun {
	return &ScanRun{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now().UTC(),
		Tools:     tools,
	}
}

// RecordInvocation stores a terminal invocation, replacing any prior record
// for the same tool, and marks the run degraded when output was unusable.
func (r *ScanRun) RecordInvocation(inv ToolInvocation) {
	for i, existing := range r.Invocations {
		if existing.Tool == inv.Tool {
			r.Invocations[i] = inv
			r.refreshDegraded()
			return
		}
	}
	r.Invocations = append(r.Invocations, inv)
	r.refreshDegraded()
}

func (r *ScanRun) refreshDegraded() {
	r.Degraded = false
	r.DegradedReasons = r.DegradedReasons[:0]
	for _, inv := range r.Invocations {
		if !inv.Usable() {
			r.Degraded = true
			r.DegradedReasons = append(r.DegradedReasons,
				fmt.Sprintf("%s: %s", inv.Tool, inv.Status))
		}
	}
}

// FailedTools returns the tools whose invocations ended without usable output.
func (r *ScanRun) FailedTools() []string {
	var failed []string
	for _, inv := range r.Invocations {
		if !inv.Usable() {
			failed = append(failed, inv.Tool)
		}
	}
	return failed
}
