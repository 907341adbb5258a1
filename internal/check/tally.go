package check

import "fmt"

// Tally counts outcomes of a run. Total always equals Passed + Failed.
type Tally struct {
	Total  int `json:"total" yaml:"total" msgpack:"total"`
	Passed int `json:"passed" yaml:"passed" msgpack:"passed"`
	Failed int `json:"failed" yaml:"failed" msgpack:"failed"`
}

// Pass records one successful outcome.
func (t *Tally) Pass() {
	t.Total++
	t.Passed++
}

// Fail records one failed outcome.
func (t *Tally) Fail() {
	t.Total++
	t.Failed++
}

// Record records ok as a pass or a failure.
func (t *Tally) Record(ok bool) {
	if ok {
		t.Pass()
		return
	}
	t.Fail()
}

// Add merges other into t.
func (t *Tally) Add(other Tally) {
	t.Total += other.Total
	t.Passed += other.Passed
	t.Failed += other.Failed
}

// Summarize returns the counters without modifying them.
func (t Tally) Summarize() (passed, failed, total int) {
	return t.Passed, t.Failed, t.Total
}

// OK reports whether nothing failed.
func (t Tally) OK() bool {
	return t.Failed == 0
}

// Consistent reports whether Total == Passed + Failed and no counter is negative.
func (t Tally) Consistent() bool {
	return t.Passed >= 0 && t.Failed >= 0 && t.Total == t.Passed+t.Failed
}

// ExitCode maps the tally onto a process exit code: 0 when nothing failed, 1 otherwise.
func (t Tally) ExitCode() int {
	if t.OK() {
		return 0
	}
	return 1
}

// String renders the summary line, e.g. "3 / 4 passed".
func (t Tally) String() string {
	return fmt.Sprintf("%d / %d passed", t.Passed, t.Total)
}
