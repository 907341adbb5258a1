package suite

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ExpectKind selects how a case's termination is judged.
type ExpectKind uint8

const (
	// ExpectReturn requires the callable to return normally with no failed assertions.
	ExpectReturn ExpectKind = iota
	// ExpectSignal requires the isolated child to be terminated by one of Signals.
	ExpectSignal
	// ExpectExit requires the isolated child to exit with one of ExitCodes.
	ExpectExit
)

// String returns the string representation of ExpectKind.
func (k ExpectKind) String() string {
	switch k {
	case ExpectReturn:
		return "return"
	case ExpectSignal:
		return "signal"
	case ExpectExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Expectation is the expected-outcome policy of a case.
type Expectation struct {
	Kind      ExpectKind
	Signals   []unix.Signal
	ExitCodes []int
}

// Return is the default policy: must return normally.
func Return() Expectation {
	return Expectation{Kind: ExpectReturn}
}

// Signal expects termination by any of sigs. With no arguments SIGABRT is assumed.
func Signal(sigs ...unix.Signal) Expectation {
	if len(sigs) == 0 {
		sigs = []unix.Signal{unix.SIGABRT}
	}
	return Expectation{Kind: ExpectSignal, Signals: slices.Clone(sigs)}
}

// ExitSanitizer is the status a sanitizer-instrumented child exits with on a
// report. The invoker passes it through ASAN_OPTIONS.
const ExitSanitizer = 168

// Sanitizer expects the child to stop with a sanitizer report.
func Sanitizer() Expectation {
	return Exit(ExitSanitizer)
}

// Exit expects a normal exit with any of codes.
func Exit(codes ...int) Expectation {
	return Expectation{Kind: ExpectExit, ExitCodes: slices.Clone(codes)}
}

// AllowsSignal reports whether sig satisfies the policy.
func (e Expectation) AllowsSignal(sig unix.Signal) bool {
	return e.Kind == ExpectSignal && slices.Contains(e.Signals, sig)
}

// AllowsExit reports whether a normal exit with code satisfies the policy.
func (e Expectation) AllowsExit(code int) bool {
	switch e.Kind {
	case ExpectReturn:
		return code == 0
	case ExpectExit:
		return slices.Contains(e.ExitCodes, code)
	default:
		return false
	}
}

// Validate rejects policies that can never pass.
func (e Expectation) Validate() error {
	switch e.Kind {
	case ExpectReturn:
		return nil
	case ExpectSignal:
		if len(e.Signals) == 0 {
			return fmt.Errorf("signal expectation lists no signals")
		}
		for _, sig := range e.Signals {
			if sig <= 0 {
				return fmt.Errorf("invalid signal %d", int(sig))
			}
		}
		return nil
	case ExpectExit:
		if len(e.ExitCodes) == 0 {
			return fmt.Errorf("exit expectation lists no exit codes")
		}
		for _, code := range e.ExitCodes {
			if code <= 0 || code > 255 {
				return fmt.Errorf("exit code %d out of range 1..255", code)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown expectation kind %d", e.Kind)
	}
}

// String renders the policy, e.g. "signal(SIGABRT)" or "exit(66)".
func (e Expectation) String() string {
	switch e.Kind {
	case ExpectSignal:
		names := make([]string, 0, len(e.Signals))
		for _, sig := range e.Signals {
			if name := unix.SignalName(sig); name != "" {
				names = append(names, name)
			} else {
				names = append(names, strconv.Itoa(int(sig)))
			}
		}
		return "signal(" + strings.Join(names, "|") + ")"
	case ExpectExit:
		codes := make([]string, 0, len(e.ExitCodes))
		for _, code := range e.ExitCodes {
			codes = append(codes, strconv.Itoa(code))
		}
		return "exit(" + strings.Join(codes, "|") + ")"
	default:
		return e.Kind.String()
	}
}

// SignalName returns the symbolic name of sig, or "signal N" when unknown.
func SignalName(sig unix.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}

// ParseExpectation parses the textual form produced by String, plus bare
// "return", "abort" (SIGABRT), "sanitizer" (exit 168) and signal names
// without the SIG prefix.
func ParseExpectation(s string) (Expectation, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "return":
		return Return(), nil
	case "abort":
		return Signal(unix.SIGABRT), nil
	case "sanitizer":
		return Sanitizer(), nil
	}

	kind, args, ok := splitCall(s)
	if !ok {
		return Expectation{}, fmt.Errorf("invalid expectation %q (expected return|abort|signal(...)|exit(...))", s)
	}
	switch strings.ToLower(kind) {
	case "signal":
		sigs := make([]unix.Signal, 0, len(args))
		for _, arg := range args {
			sig, err := parseSignal(arg)
			if err != nil {
				return Expectation{}, err
			}
			sigs = append(sigs, sig)
		}
		exp := Signal(sigs...)
		return exp, exp.Validate()
	case "exit":
		codes := make([]int, 0, len(args))
		for _, arg := range args {
			code, err := strconv.Atoi(arg)
			if err != nil {
				return Expectation{}, fmt.Errorf("invalid exit code %q: %w", arg, err)
			}
			codes = append(codes, code)
		}
		exp := Exit(codes...)
		return exp, exp.Validate()
	default:
		return Expectation{}, fmt.Errorf("unknown expectation kind %q", kind)
	}
}

func splitCall(s string) (string, []string, bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, false
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return s[:open], nil, true
	}
	fields := strings.FieldsFunc(inner, func(r rune) bool { return r == '|' || r == ',' })
	args := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	return s[:open], args, true
}

func parseSignal(s string) (unix.Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid signal %d", n)
		}
		return unix.Signal(n), nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", s)
	}
	return sig, nil
}
