package isolate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sys/unix"

	"harness/internal/check"
	"harness/internal/suite"
)

// Lookup finds registered cases by name.
type Lookup interface {
	Lookup(name string) (suite.Case, bool)
}

// IsChild reports whether this process was started to serve an isolated case.
func IsChild() bool {
	return os.Getenv(EnvCase) != ""
}

// ServeChild runs the case named by EnvCase and returns the exit code the
// process must terminate with. Assertion diagnostics go to stderr.
func ServeChild(cases Lookup, stderr io.Writer) int {
	name := os.Getenv(EnvCase)
	c, ok := cases.Lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "isolated case %q is not registered\n", name)
		return ExitUnknownCase
	}

	rec := check.NewRecorder(nil, stderr).WithPrefix(c.Name)
	if err := c.Call(rec); err != nil {
		var perr *suite.PanicError
		if errors.As(err, &perr) {
			fmt.Fprintf(stderr, "%v\n%s", perr, perr.Stack)
		}
		return ExitPanicked
	}
	if rec.Failures() > 0 {
		return ExitChecksFailed
	}
	return ExitOK
}

// MaybeServe serves an isolated case and exits when the process is a child.
// It returns immediately in the parent.
func MaybeServe(cases Lookup) {
	if !IsChild() {
		return
	}
	os.Exit(ServeChild(cases, os.Stderr))
}

// Abort terminates the current process with SIGABRT, the way a failed C
// assert would. Use it only inside an isolated case. Like C abort() it prints
// nothing: the runtime's crash dump is discarded.
func Abort() {
	Raise(unix.SIGABRT)
}

// Raise sends sig to the current process and waits to be terminated.
// SIGABRT is routed through the runtime's crash path so the process dies by
// the signal rather than exiting with status 2. Other signals must be ones
// the runtime treats as fatal when unhandled (SIGTERM, SIGINT, SIGHUP, SIGKILL).
func Raise(sig unix.Signal) {
	if sig == unix.SIGABRT {
		debug.SetTraceback("crash")
		silenceStderr()
	}
	_ = unix.Kill(unix.Getpid(), sig)
	for {
		time.Sleep(time.Second)
	}
}

// silenceStderr points fd 2 at /dev/null. Output already written stays
// forwarded; only the goroutine dump that follows is lost.
func silenceStderr() {
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return
	}
	_ = redirectFd(int(devNull.Fd()), 2)
}
