package isolate

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"harness/internal/suite"
)

// Exit codes used by a child serving a case.
const (
	ExitOK           = 0
	ExitChecksFailed = 1
	ExitPanicked     = 3
	ExitUnknownCase  = 4
)

// Outcome is how an isolated child terminated.
type Outcome struct {
	Exited   bool
	ExitCode int
	Signal   unix.Signal // non-zero when the child was killed by a signal
	TimedOut bool
	// Limit is the timeout that expired when TimedOut is set.
	Limit time.Duration
	// Err is set when the child could not be started or waited for.
	Err      error
	Duration time.Duration
}

// Signaled reports whether the child was terminated by a signal.
func (o Outcome) Signaled() bool {
	return o.Signal != 0
}

// String describes the raw termination status.
func (o Outcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("isolation failed: %v", o.Err)
	case o.TimedOut:
		return fmt.Sprintf("timed out after %s", o.Limit)
	case o.Signaled():
		return fmt.Sprintf("terminated by signal %d (%s)", int(o.Signal), suite.SignalName(o.Signal))
	case o.Exited:
		return fmt.Sprintf("exited with code %d%s", o.ExitCode, exitMeaning(o.ExitCode))
	default:
		return "unknown termination"
	}
}

// Judge applies the expectation of a case to an outcome. It returns whether
// the case passed and, when it did not, the reason.
func Judge(exp suite.Expectation, o Outcome) (bool, string) {
	if o.Err != nil || o.TimedOut {
		return false, o.String()
	}

	if o.Signaled() {
		if exp.AllowsSignal(o.Signal) {
			return true, ""
		}
		if exp.Kind != suite.ExpectReturn {
			return false, fmt.Sprintf("%s, expected %s", o, exp)
		}
		return false, o.String()
	}

	if o.Exited {
		if exp.AllowsExit(o.ExitCode) {
			return true, ""
		}
		if exp.Kind != suite.ExpectReturn {
			return false, fmt.Sprintf("%s, expected %s", o, exp)
		}
		return false, o.String()
	}

	return false, o.String()
}

func exitMeaning(code int) string {
	switch code {
	case ExitChecksFailed:
		return " (assertion failures)"
	case ExitPanicked:
		return " (panic)"
	case ExitUnknownCase:
		return " (case not registered in child)"
	case suite.ExitSanitizer:
		return " (sanitizer report)"
	default:
		return ""
	}
}
