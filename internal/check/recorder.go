// Package check implements non-terminating assertions.
//
// A Recorder never stops the caller: every assertion only updates a Tally and,
// on failure, writes one diagnostic line. The only externally visible failure
// signal of a run is the exit code derived from the case tally.
package check

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Recorder records assertion outcomes into a Tally.
type Recorder struct {
	tally  *Tally
	out    io.Writer
	prefix string
	// failed counts failures since the last Reset, so a runner can attribute
	// them to the current case even when the tally is shared.
	failed int
}

// NewRecorder returns a Recorder that writes diagnostics to out.
// A nil tally gets a fresh one; a nil writer falls back to stderr.
func NewRecorder(tally *Tally, out io.Writer) *Recorder {
	if tally == nil {
		tally = &Tally{}
	}
	if out == nil {
		out = os.Stderr
	}
	return &Recorder{tally: tally, out: out}
}

// WithPrefix returns a Recorder sharing the same tally and writer that
// prefixes diagnostics with name.
func (r *Recorder) WithPrefix(name string) *Recorder {
	return &Recorder{tally: r.tally, out: r.out, prefix: name}
}

// AssertTrue records cond. On failure a diagnostic containing label is written.
func (r *Recorder) AssertTrue(cond bool, label string) {
	r.record(cond, label, "")
}

// AssertFalse records !cond.
func (r *Recorder) AssertFalse(cond bool, label string) {
	r.record(!cond, label, "expected false")
}

// AssertEqual records whether got equals want. Byte slices are compared by
// content and multi-line strings produce a unified diff.
func (r *Recorder) AssertEqual(got, want any, label string) {
	if equal(got, want) {
		r.record(true, label, "")
		return
	}
	r.record(false, label, describeMismatch(got, want))
}

// AssertNoError records whether err is nil.
func (r *Recorder) AssertNoError(err error, label string) {
	if err == nil {
		r.record(true, label, "")
		return
	}
	r.record(false, label, fmt.Sprintf("unexpected error: %v", err))
}

// AssertError records whether err is non-nil.
func (r *Recorder) AssertError(err error, label string) {
	r.record(err != nil, label, "expected an error, got nil")
}

// Failf records an unconditional failure.
func (r *Recorder) Failf(format string, args ...any) {
	r.record(false, fmt.Sprintf(format, args...), "")
}

// Summarize returns the counters of the underlying tally.
func (r *Recorder) Summarize() (passed, failed, total int) {
	return r.tally.Summarize()
}

// Tally returns a copy of the underlying tally.
func (r *Recorder) Tally() Tally {
	return *r.tally
}

// Failures returns the number of failures since the last Reset.
func (r *Recorder) Failures() int {
	return r.failed
}

// Reset clears the per-case failure count. The tally is left untouched.
func (r *Recorder) Reset() {
	r.failed = 0
}

func (r *Recorder) record(ok bool, label, detail string) {
	r.tally.Record(ok)
	if ok {
		return
	}
	r.failed++

	var b strings.Builder
	b.WriteString("assertion failed")
	if r.prefix != "" {
		b.WriteString(" [")
		b.WriteString(r.prefix)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(label)
	if detail != "" {
		if strings.Contains(detail, "\n") {
			b.WriteString("\n")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(detail)
	}
	b.WriteString("\n")
	// Diagnostics are best-effort; a broken stream must not turn into a failure.
	_, _ = io.WriteString(r.out, b.String())
}

func equal(got, want any) bool {
	gb, gok := got.([]byte)
	wb, wok := want.([]byte)
	if gok && wok {
		return bytes.Equal(gb, wb)
	}
	return reflect.DeepEqual(got, want)
}

func describeMismatch(got, want any) string {
	gs, gok := got.(string)
	ws, wok := want.(string)
	if gok && wok && (strings.Contains(gs, "\n") || strings.Contains(ws, "\n")) {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(ws),
			B:        difflib.SplitLines(gs),
			FromFile: "want",
			ToFile:   "got",
			Context:  3,
		}
		text, err := difflib.GetUnifiedDiffString(diff)
		if err == nil && text != "" {
			return strings.TrimRight(text, "\n")
		}
	}
	return fmt.Sprintf("got %#v, want %#v", got, want)
}
