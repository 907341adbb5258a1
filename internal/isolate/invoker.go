// Package isolate runs a single case in a child process so that a crash in
// the code under test is reported as a failed case instead of ending the run.
//
// The child is the current executable started again with EnvCase naming the
// case. The binary's entry point must call ServeChild (or MaybeServe) before
// doing anything else. Only the child's termination status is used to judge
// the case; its output is forwarded for humans and never parsed.
package isolate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"harness/internal/suite"
	"harness/internal/trace"
)

// EnvCase names the case a child process must run.
const EnvCase = "HARNESS_ISOLATED_CASE"

const maxLineBytes = 1 << 20

// asanOptions makes an instrumented child report through a distinct exit
// status instead of the generic 1.
var asanOptions = fmt.Sprintf("ASAN_OPTIONS=exitcode=%d:alloc_dealloc_mismatch=0", suite.ExitSanitizer)

// Invoker starts isolated children.
type Invoker struct {
	// Executable is the binary to start. Defaults to os.Executable().
	Executable string
	// Args are passed to the child unchanged.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// Timeout kills a child that runs longer. Zero waits forever.
	Timeout time.Duration
	// Stdout and Stderr receive the child's output, one prefixed line at a
	// time. Nil discards.
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the case called name in a child process and blocks until the
// child has terminated.
func (inv *Invoker) Run(ctx context.Context, name string) Outcome {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeChild, "child:"+name, trace.ParentFrom(ctx))

	out := inv.run(ctx, name)
	span.End(out.String())
	return out
}

func (inv *Invoker) run(ctx context.Context, name string) Outcome {
	exe := inv.Executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return Outcome{Err: fmt.Errorf("locate executable: %w", err)}
		}
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, exe, inv.Args...)
	cmd.Env = append(os.Environ(), EnvCase+"="+name, "GOTRACEBACK=crash")
	if os.Getenv("ASAN_OPTIONS") == "" {
		cmd.Env = append(cmd.Env, asanOptions)
	}
	cmd.Env = append(cmd.Env, inv.Env...)
	// The child leads its own process group so a kill reaches anything it spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}

	var streams outputStreams
	defer streams.closeAll()
	if err := streams.attach(cmd, inv.Stdout, inv.Stderr); err != nil {
		return Outcome{Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{Err: fmt.Errorf("start child: %w", err)}
	}
	streams.closeWriters()
	trace.Point(trace.FromContext(ctx), trace.ScopeChild, "child:"+name, fmt.Sprintf("pid %d", cmd.Process.Pid), trace.ParentFrom(ctx))

	forwarded := streams.forward(name)
	waitErr := cmd.Wait()
	copyErr := streams.drain(forwarded, drainGrace)

	out := classify(cmd.ProcessState)
	out.Duration = time.Since(start)

	if copyErr != nil && inv.Stderr != nil {
		fmt.Fprintf(inv.Stderr, "[%s] output forwarding: %v\n", name, copyErr)
	}

	if runCtx.Err() != nil {
		if ctx.Err() != nil {
			out.Err = fmt.Errorf("run cancelled: %w", ctx.Err())
		} else {
			out.TimedOut = true
			out.Limit = inv.Timeout
		}
		return out
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		out.Err = fmt.Errorf("wait for child: %w", waitErr)
	}
	if cmd.ProcessState == nil && out.Err == nil {
		out.Err = errors.New("child terminated without a status")
	}
	return out
}

// drainGrace bounds how long output is still read after the child has
// exited. A grandchild holding the pipes open is cut off after that.
const drainGrace = time.Second

// outputStreams owns the pipes between the child and the forwarders. The
// child writes straight into the pipe, so Wait returns as soon as the child
// itself is gone.
type outputStreams struct {
	mu      sync.Mutex
	readers []*os.File
	writers []*os.File
	sinks   []io.Writer
}

func (s *outputStreams) attach(cmd *exec.Cmd, stdout, stderr io.Writer) error {
	for i, sink := range []io.Writer{stdout, stderr} {
		if sink == nil {
			continue
		}
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("output pipe: %w", err)
		}
		s.readers = append(s.readers, r)
		s.writers = append(s.writers, w)
		s.sinks = append(s.sinks, lockedWriter(&s.mu, sink))
		if i == 0 {
			cmd.Stdout = w
		} else {
			cmd.Stderr = w
		}
	}
	return nil
}

func (s *outputStreams) closeWriters() {
	for _, w := range s.writers {
		_ = w.Close()
	}
	s.writers = nil
}

func (s *outputStreams) closeAll() {
	s.closeWriters()
	for _, r := range s.readers {
		_ = r.Close()
	}
}

// forward starts one forwarder per stream. The channel yields their combined
// error once all of them are done.
func (s *outputStreams) forward(name string) <-chan error {
	var g errgroup.Group
	for i, r := range s.readers {
		r, sink := r, s.sinks[i]
		g.Go(func() error {
			err := forward(sink, r, name)
			if errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	return done
}

// drain waits for the forwarders, closing the read ends when they are still
// blocked after grace.
func (s *outputStreams) drain(done <-chan error, grace time.Duration) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	}
	for _, r := range s.readers {
		_ = r.Close()
	}
	return <-done
}

func classify(state *os.ProcessState) Outcome {
	if state == nil {
		return Outcome{}
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return Outcome{Exited: state.Exited(), ExitCode: state.ExitCode()}
	}
	switch {
	case ws.Signaled():
		return Outcome{Signal: ws.Signal()}
	case ws.Exited():
		return Outcome{Exited: true, ExitCode: ws.ExitStatus()}
	default:
		return Outcome{ExitCode: -1}
	}
}

// forward copies r to w line by line, prefixing each line with the case name.
// It keeps draining r after a failure so the child never blocks on a full pipe.
func forward(w io.Writer, r io.Reader, name string) error {
	if w == nil {
		_, err := io.Copy(io.Discard, r)
		return err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	prefix := "[" + name + "] "
	for sc.Scan() {
		if _, err := io.WriteString(w, prefix+sc.Text()+"\n"); err != nil {
			_, _ = io.Copy(io.Discard, r)
			return err
		}
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

type syncWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func lockedWriter(mu *sync.Mutex, w io.Writer) io.Writer {
	if w == nil {
		return nil
	}
	return &syncWriter{mu: mu, w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
