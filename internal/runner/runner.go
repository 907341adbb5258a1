// Package runner executes registered cases in order and reports a verdict for
// each of them.
//
// A case runs either in-process, where assertion failures and panics are
// contained, or through an Isolator, where only the child's termination status
// counts. Either way one case never stops the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"harness/internal/check"
	"harness/internal/isolate"
	"harness/internal/observ"
	"harness/internal/suite"
	"harness/internal/trace"
)

// ErrAlreadyRun is returned by RunAll on a runner that has already run.
var ErrAlreadyRun = errors.New("runner: cases already run")

// State is the lifecycle of a Runner.
type State int

const (
	// NotStarted is a runner whose RunAll has not been called.
	NotStarted State = iota
	// Running is a runner inside RunAll.
	Running
	// Finished is a runner whose report is final; RunAll returns ErrAlreadyRun.
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Isolator runs one case out of process.
type Isolator interface {
	Run(ctx context.Context, name string) isolate.Outcome
}

// Options configure a Runner.
type Options struct {
	// Out receives the [PASS]/[FAIL] lines and the summary. Nil discards.
	Out io.Writer
	// Diag receives assertion diagnostics and panic stacks. Nil means stderr.
	Diag io.Writer
	// Isolator runs isolated cases. Nil uses an isolate.Invoker writing the
	// child's output to Out and Diag.
	Isolator Isolator
	// IsolateAll runs every case in a child process.
	IsolateAll bool
	// FailFast skips the remaining cases after the first failure.
	FailFast bool
	Color    bool
	// Quiet prints only failures and the summary.
	Quiet     bool
	Progress  ProgressSink
	Timer     *observ.Timer
	Heartbeat *trace.Heartbeat
}

// Runner runs a fixed list of cases exactly once.
type Runner struct {
	mu     sync.Mutex
	cases  []suite.Case
	opts   Options
	state  State
	report Report
}

// New returns a Runner for cases. The slice is copied.
func New(cases []suite.Case, opts Options) *Runner {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Diag == nil {
		opts.Diag = os.Stderr
	}
	if opts.Isolator == nil {
		opts.Isolator = &isolate.Invoker{Stdout: opts.Out, Stderr: opts.Diag}
	}
	return &Runner{
		cases: append([]suite.Case(nil), cases...),
		opts:  opts,
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Report returns the report of a finished run, or an empty one.
func (r *Runner) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report
}

// Summarize returns the case counters of the last run. It may be called any
// number of times.
func (r *Runner) Summarize() (passed, failed, total int) {
	return r.Report().Summarize()
}

// RunAll runs every case in registration order and prints the summary line.
// It returns an error only when the run itself could not complete: a second
// call, or ctx being cancelled. Case failures are reported in the Report.
func (r *Runner) RunAll(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.state != NotStarted {
		r.mu.Unlock()
		return Report{}, ErrAlreadyRun
	}
	r.state = Running
	r.mu.Unlock()

	rep, err := r.runAll(ctx)

	r.mu.Lock()
	r.report = rep
	r.state = Finished
	r.mu.Unlock()
	return rep, err
}

func (r *Runner) runAll(ctx context.Context) (Report, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRun, "run", trace.ParentFrom(ctx))
	ctx = trace.WithParent(ctx, span.ID())

	rep := Report{
		Started: time.Now(),
		Results: make([]CaseResult, 0, len(r.cases)),
	}
	pr := newPrinter(r.opts.Out, r.opts.Color, r.opts.Quiet)

	for i, c := range r.cases {
		r.emit(Event{Index: i, Name: c.Name, Status: StatusQueued, Isolated: r.isolated(c)})
	}

	var runErr error
	stop := false
	for i, c := range r.cases {
		if !stop && ctx.Err() != nil {
			runErr = fmt.Errorf("run interrupted: %w", ctx.Err())
			stop = true
		}
		if stop {
			res := CaseResult{Name: c.Name, Expect: c.Expect.String(), Isolated: r.isolated(c), Skipped: true}
			rep.Results = append(rep.Results, res)
			rep.Skipped++
			r.emit(Event{Index: i, Name: c.Name, Status: StatusSkipped, Isolated: res.Isolated})
			pr.result(res)
			continue
		}

		res := r.runCase(ctx, i, c)
		rep.Results = append(rep.Results, res)
		rep.Cases.Record(res.Passed)
		rep.Checks.Add(res.Checks)
		pr.result(res)

		if !res.Passed && r.opts.FailFast {
			stop = true
		}
	}

	rep.Duration = time.Since(rep.Started)
	pr.summary(rep)

	span.WithExtra("passed", fmt.Sprint(rep.Cases.Passed)).
		WithExtra("failed", fmt.Sprint(rep.Cases.Failed)).
		End(rep.Cases.String())
	return rep, runErr
}

func (r *Runner) isolated(c suite.Case) bool {
	return r.opts.IsolateAll || c.Isolated()
}

func (r *Runner) runCase(ctx context.Context, idx int, c suite.Case) CaseResult {
	isolated := r.isolated(c)
	res := CaseResult{Name: c.Name, Expect: c.Expect.String(), Isolated: isolated}

	r.emit(Event{Index: idx, Name: c.Name, Status: StatusRunning, Isolated: isolated})
	r.opts.Heartbeat.Mark(c.Name)
	defer r.opts.Heartbeat.Mark("")

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeCase, c.Name, trace.ParentFrom(ctx))
	ctx = trace.WithParent(ctx, span.ID())
	timerIdx := r.opts.Timer.Begin(c.Name)
	start := time.Now()

	if isolated {
		r.runIsolated(ctx, c, &res)
	} else {
		r.runInProcess(c, &res)
	}

	res.Duration = time.Since(start)
	verdict := "passed"
	status := StatusPassed
	if !res.Passed {
		verdict = "failed: " + res.Reason
		status = StatusFailed
	}
	r.opts.Timer.End(timerIdx, verdict)
	span.End(verdict)
	r.emit(Event{Index: idx, Name: c.Name, Status: status, Isolated: isolated, Reason: res.Reason, Elapsed: res.Duration})
	return res
}

func (r *Runner) runInProcess(c suite.Case, res *CaseResult) {
	rec := check.NewRecorder(&res.Checks, r.opts.Diag).WithPrefix(c.Name)
	err := c.Call(rec)

	var perr *suite.PanicError
	switch {
	case errors.As(err, &perr):
		fmt.Fprintf(r.opts.Diag, "[%s] %v\n%s", c.Name, perr, perr.Stack)
		res.Reason = perr.Error()
	case err != nil:
		res.Reason = err.Error()
	case rec.Failures() > 0:
		res.Reason = fmt.Sprintf("%d of %d assertions failed", rec.Failures(), res.Checks.Total)
	default:
		res.Passed = true
	}
}

func (r *Runner) runIsolated(ctx context.Context, c suite.Case, res *CaseResult) {
	out := r.opts.Isolator.Run(ctx, c.Name)
	res.Passed, res.Reason = isolate.Judge(c.Expect, out)
	if out.Exited {
		res.ExitCode = out.ExitCode
	}
	res.Signal = int(out.Signal)
}

func (r *Runner) emit(evt Event) {
	if r.opts.Progress == nil {
		return
	}
	r.opts.Progress.OnEvent(evt)
}
