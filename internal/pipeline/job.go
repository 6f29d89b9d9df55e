package pipeline

import (
	"errors"
	"fmt"

	"typeright/internal/fixer"
	"typeright/internal/patch"
	"typeright/internal/render"
	"typeright/internal/source"
)

// State is the progress of a Job.
type State string

const (
	StatePending   State = "pending"
	StateParsed    State = "parsed"
	StateResolving State = "resolving"
	StateRendering State = "rendering"
	StatePatched   State = "patched"
	StateWritten   State = "written"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

// Job is the processing record of one input file.
type Job struct {
	Path    string
	OutPath string
	Module  string

	// Write is set when output goes to a file rather than a diff.
	Write bool
	// Wrote reports whether a file was actually written.
	Wrote bool

	State State
	Err   error
	Diff  string
	Edits int
	// Sites counts the call sites that received annotations.
	Sites int
	// Fallbacks counts sites rendered as comments because inline
	// annotations were not possible.
	Fallbacks int
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	switch j.State {
	case StateWritten, StateSkipped, StateFailed:
		return true
	}
	return false
}

func (j *Job) fail(err error) *Job {
	j.State = StateFailed
	j.Err = err
	return j
}

// ErrorKind names the class of a failure for the summary.
func (j *Job) ErrorKind() string {
	var (
		syntax  *source.SyntaxError
		overlap *patch.OverlapError
		style   *render.UnsupportedStyleError
	)
	switch {
	case j.Err == nil:
		return ""
	case errors.As(j.Err, &syntax):
		return "syntax error"
	case errors.As(j.Err, &overlap):
		return "overlapping edits"
	case errors.As(j.Err, &style):
		return "unsupported style"
	default:
		return "i/o error"
	}
}

// Summary is the outcome of a run.
type Summary struct {
	Jobs    []*Job
	Written int
	Skipped int
	Failed  int
	Stages  []fixer.StageResult
}

// OK reports whether every file was written or skipped.
func (s *Summary) OK() bool { return s.Failed == 0 }

func (s *Summary) String() string {
	return fmt.Sprintf("%d written, %d skipped, %d failed", s.Written, s.Skipped, s.Failed)
}

func summarize(jobs []*Job, stages []fixer.StageResult) *Summary {
	s := &Summary{Jobs: jobs, Stages: stages}
	for _, j := range jobs {
		switch j.State {
		case StateWritten:
			s.Written++
		case StateSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
