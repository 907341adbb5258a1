package isolate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"harness/internal/check"
	"harness/internal/suite"
)

// TestMain doubles as the child entry point: the invoker re-executes this
// test binary with EnvCase set.
func TestMain(m *testing.M) {
	MaybeServe(childCases())
	os.Exit(m.Run())
}

func childCases() *suite.Registry {
	reg := suite.NewRegistry(io.Discard)
	_ = reg.Register("returns", func(r *check.Recorder) {
		fmt.Println("hello from child")
		r.AssertTrue(true, "always")
	})
	_ = reg.Register("fails-check", func(r *check.Recorder) {
		r.AssertTrue(false, "deliberate failure")
	})
	_ = reg.Register("panics", func(*check.Recorder) {
		panic("boom")
	})
	_ = reg.Register("aborts", func(*check.Recorder) {
		Abort()
	}, suite.Expect(suite.Signal()))
	_ = reg.Register("terminates", func(*check.Recorder) {
		Raise(unix.SIGTERM)
	})
	_ = reg.Register("exits-66", func(*check.Recorder) {
		os.Exit(66)
	}, suite.Expect(suite.Exit(66)))
	_ = reg.Register("hangs", func(*check.Recorder) {
		time.Sleep(time.Minute)
	})
	_ = reg.Register("hangs-with-sleeper", func(r *check.Recorder) {
		// The sleeper leaves the process group and keeps our output open.
		sleeper := exec.Command("sleep", "30")
		sleeper.Stdout = os.Stdout
		sleeper.Stderr = os.Stderr
		sleeper.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		r.AssertNoError(sleeper.Start(), "start sleeper")
		time.Sleep(time.Minute)
	})
	return reg
}

func runChild(t *testing.T, inv *Invoker, name string) Outcome {
	t.Helper()
	out := inv.Run(context.Background(), name)
	if out.Err != nil {
		t.Fatalf("Run(%q) infrastructure error: %v", name, out.Err)
	}
	return out
}

func TestRunReturnsNormally(t *testing.T) {
	var stdout bytes.Buffer
	inv := &Invoker{Stdout: &stdout}
	out := runChild(t, inv, "returns")

	if !out.Exited || out.ExitCode != ExitOK || out.Signaled() {
		t.Fatalf("outcome = %+v, want clean exit 0", out)
	}
	if !strings.Contains(stdout.String(), "[returns] hello from child") {
		t.Fatalf("child stdout not forwarded with prefix: %q", stdout.String())
	}
	if ok, reason := Judge(suite.Return(), out); !ok {
		t.Fatalf("Judge(return) failed: %s", reason)
	}
}

func TestRunExitCodes(t *testing.T) {
	cases := []struct {
		name string
		code int
	}{
		{"fails-check", ExitChecksFailed},
		{"panics", ExitPanicked},
		{"exits-66", 66},
		{"not-registered", ExitUnknownCase},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			out := runChild(t, &Invoker{Stderr: &stderr}, tc.name)
			if !out.Exited || out.ExitCode != tc.code {
				t.Fatalf("outcome = %+v, want exit %d; stderr:\n%s", out, tc.code, stderr.String())
			}
		})
	}
}

func TestRunFailedCheckDiagnosticIsForwarded(t *testing.T) {
	var stderr bytes.Buffer
	runChild(t, &Invoker{Stderr: &stderr}, "fails-check")
	if !strings.Contains(stderr.String(), "deliberate failure") {
		t.Fatalf("assertion diagnostic not forwarded: %q", stderr.String())
	}
}

func TestRunAbortIsSignal(t *testing.T) {
	out := runChild(t, &Invoker{}, "aborts")
	if !out.Signaled() || out.Signal != unix.SIGABRT {
		t.Fatalf("outcome = %+v, want SIGABRT", out)
	}
	if ok, reason := Judge(suite.Signal(), out); !ok {
		t.Fatalf("Judge(signal) failed: %s", reason)
	}
	if ok, _ := Judge(suite.Return(), out); ok {
		t.Fatalf("an abort must fail a must-return case")
	}
}

func TestRunUnexpectedSignalReportsNumber(t *testing.T) {
	out := runChild(t, &Invoker{}, "terminates")
	if out.Signal != unix.SIGTERM {
		t.Fatalf("outcome = %+v, want SIGTERM", out)
	}
	ok, reason := Judge(suite.Signal(unix.SIGABRT), out)
	if ok {
		t.Fatalf("SIGTERM must not satisfy a SIGABRT expectation")
	}
	if !strings.Contains(reason, fmt.Sprintf("signal %d", int(unix.SIGTERM))) {
		t.Fatalf("reason %q does not include the raw signal number", reason)
	}
	if !strings.Contains(reason, "expected signal(SIGABRT)") {
		t.Fatalf("reason %q does not name the expectation", reason)
	}
}

func TestRunTimeout(t *testing.T) {
	out := runChild(t, &Invoker{Timeout: 200 * time.Millisecond}, "hangs")
	if !out.TimedOut {
		t.Fatalf("outcome = %+v, want timeout", out)
	}
	ok, reason := Judge(suite.Return(), out)
	if ok || reason != "timed out after 200ms" {
		t.Fatalf("Judge = (%v, %q), want timeout failure", ok, reason)
	}
}

func TestRunTimeoutWithGrandchildHoldingOutput(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	var stdout, stderr bytes.Buffer
	inv := &Invoker{Timeout: 300 * time.Millisecond, Stdout: &stdout, Stderr: &stderr}
	out := runChild(t, inv, "hangs-with-sleeper")
	if !out.TimedOut {
		t.Fatalf("outcome = %+v, want timeout", out)
	}
	if out.Duration > 10*time.Second {
		t.Fatalf("Run returned after %s; the grandchild kept it waiting", out.Duration)
	}
	if got := out.String(); got != "timed out after 300ms" {
		t.Fatalf("String() = %q", got)
	}
}

func TestAbortPrintsNothing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := runChild(t, &Invoker{Stdout: &stdout, Stderr: &stderr}, "aborts")
	if out.Signal != unix.SIGABRT {
		t.Fatalf("outcome = %+v, want SIGABRT", out)
	}
	if stderr.Len() != 0 || stdout.Len() != 0 {
		t.Fatalf("abort produced output:\nstdout: %s\nstderr: %s", stdout.String(), stderr.String())
	}
}

func TestRunMissingExecutable(t *testing.T) {
	inv := &Invoker{Executable: "/nonexistent/harness-child"}
	out := inv.Run(context.Background(), "returns")
	if out.Err == nil {
		t.Fatalf("expected infrastructure error, got %+v", out)
	}
	ok, reason := Judge(suite.Return(), out)
	if ok || !strings.HasPrefix(reason, "isolation failed") {
		t.Fatalf("Judge = (%v, %q), want isolation failure", ok, reason)
	}
}

func TestJudgeExitExpectation(t *testing.T) {
	exp := suite.Exit(66)
	if ok, _ := Judge(exp, Outcome{Exited: true, ExitCode: 66}); !ok {
		t.Fatalf("exit 66 must satisfy exit(66)")
	}
	ok, reason := Judge(exp, Outcome{Exited: true, ExitCode: 0})
	if ok || !strings.Contains(reason, "expected exit(66)") {
		t.Fatalf("Judge = (%v, %q)", ok, reason)
	}
	ok, reason = Judge(suite.Sanitizer(), Outcome{Exited: true, ExitCode: 1})
	if ok || !strings.Contains(reason, "expected exit(168)") {
		t.Fatalf("Judge = (%v, %q)", ok, reason)
	}
	ok, reason = Judge(suite.Return(), Outcome{Exited: true, ExitCode: suite.ExitSanitizer})
	if ok || !strings.Contains(reason, "(sanitizer report)") {
		t.Fatalf("Judge = (%v, %q)", ok, reason)
	}
	ok, reason = Judge(suite.Return(), Outcome{Exited: true, ExitCode: ExitPanicked})
	if ok || !strings.Contains(reason, "(panic)") {
		t.Fatalf("Judge = (%v, %q)", ok, reason)
	}
}

func TestForwardDrainsOnWriteError(t *testing.T) {
	src := strings.NewReader("a\nb\nc\n")
	err := forward(failingWriter{}, src, "x")
	if err == nil {
		t.Fatalf("expected write error")
	}
	if src.Len() != 0 {
		t.Fatalf("reader not drained, %d bytes left", src.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
