package suites

import (
	"fmt"
	"os"
	"strings"

	"harness/internal/check"
	"harness/internal/isolate"
	"harness/internal/suite"
)

// ExitSentinel is the status the sentinel self-check exits with.
const ExitSentinel = 66

func registerSelf(reg *suite.Registry) {
	_ = reg.Register("harness/isolated_return", func(r *check.Recorder) {
		fmt.Println("running in pid", os.Getpid())
		r.AssertTrue(isolate.IsChild(), "runs in a child process")
	}, suite.Isolated())
	_ = reg.Register("harness/abort_expected", func(*check.Recorder) {
		isolate.Abort()
	}, suite.Expect(suite.Signal()))
	_ = reg.Register("harness/exit_sentinel", func(*check.Recorder) {
		os.Exit(ExitSentinel)
	}, suite.Expect(suite.Exit(ExitSentinel)))
	_ = reg.Register("harness/sanitizer_exit", func(r *check.Recorder) {
		r.AssertTrue(strings.Contains(os.Getenv("ASAN_OPTIONS"), "exitcode="), "ASAN_OPTIONS set for the child")
		if r.Failures() > 0 {
			return
		}
		os.Exit(suite.ExitSanitizer)
	}, suite.Expect(suite.Sanitizer()))
}
