package runner

import (
	"time"

	"harness/internal/check"
)

// CaseResult is the verdict for one case.
type CaseResult struct {
	Name     string        `json:"name" yaml:"name" msgpack:"name"`
	Expect   string        `json:"expect" yaml:"expect" msgpack:"expect"`
	Isolated bool          `json:"isolated" yaml:"isolated" msgpack:"isolated"`
	Passed   bool          `json:"passed" yaml:"passed" msgpack:"passed"`
	Skipped  bool          `json:"skipped,omitempty" yaml:"skipped,omitempty" msgpack:"skipped"`
	Reason   string        `json:"reason,omitempty" yaml:"reason,omitempty" msgpack:"reason"`
	Checks   check.Tally   `json:"checks" yaml:"checks" msgpack:"checks"`
	ExitCode int           `json:"exit_code,omitempty" yaml:"exit_code,omitempty" msgpack:"exit_code"`
	Signal   int           `json:"signal,omitempty" yaml:"signal,omitempty" msgpack:"signal"`
	Duration time.Duration `json:"duration_ns" yaml:"duration" msgpack:"duration"`
}

// Report is the outcome of RunAll.
//
// Cases counts case verdicts and drives the exit code. Checks counts the
// assertions recorded in-process; isolated children report only through
// their termination status, so their assertions are not included.
type Report struct {
	Cases    check.Tally   `json:"cases" yaml:"cases" msgpack:"cases"`
	Checks   check.Tally   `json:"checks" yaml:"checks" msgpack:"checks"`
	Skipped  int           `json:"skipped,omitempty" yaml:"skipped,omitempty" msgpack:"skipped"`
	Results  []CaseResult  `json:"results" yaml:"results" msgpack:"results"`
	Started  time.Time     `json:"started" yaml:"started" msgpack:"started"`
	Duration time.Duration `json:"duration_ns" yaml:"duration" msgpack:"duration"`
}

// Summarize returns the case counters.
func (r Report) Summarize() (passed, failed, total int) {
	return r.Cases.Summarize()
}

// ExitCode is 0 when no case failed and 1 otherwise.
func (r Report) ExitCode() int {
	return r.Cases.ExitCode()
}

// Failed returns the results of failed cases in run order.
func (r Report) Failed() []CaseResult {
	var out []CaseResult
	for _, res := range r.Results {
		if !res.Passed && !res.Skipped {
			out = append(out, res)
		}
	}
	return out
}
