package suite

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestExpectationAllows(t *testing.T) {
	ret := Return()
	if !ret.AllowsExit(0) || ret.AllowsExit(1) || ret.AllowsSignal(unix.SIGABRT) {
		t.Fatalf("Return() policy misclassifies outcomes")
	}

	abort := Signal()
	if !abort.AllowsSignal(unix.SIGABRT) || abort.AllowsSignal(unix.SIGSEGV) || abort.AllowsExit(0) {
		t.Fatalf("Signal() policy misclassifies outcomes")
	}

	if san := Sanitizer(); !san.AllowsExit(ExitSanitizer) || san.AllowsExit(1) {
		t.Fatalf("Sanitizer() policy misclassifies outcomes")
	}

	sentinel := Exit(66)
	if !sentinel.AllowsExit(66) || sentinel.AllowsExit(0) || sentinel.AllowsSignal(unix.SIGABRT) {
		t.Fatalf("Exit(66) policy misclassifies outcomes")
	}
}

func TestParseExpectation(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", "return"},
		{"return", "return"},
		{"abort", "signal(SIGABRT)"},
		{"signal(SIGABRT)", "signal(SIGABRT)"},
		{"signal(abrt|segv)", "signal(SIGABRT|SIGSEGV)"},
		{"signal(15)", "signal(SIGTERM)"},
		{"exit(66)", "exit(66)"},
		{"sanitizer", "exit(168)"},
		{"exit(1, 2)", "exit(1|2)"},
	}

	for _, tc := range cases {
		got, err := ParseExpectation(tc.input)
		if err != nil {
			t.Fatalf("ParseExpectation(%q): %v", tc.input, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseExpectation(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseExpectationErrors(t *testing.T) {
	for _, input := range []string{"crash", "signal(NOPE)", "exit()", "exit(0)", "exit(300)", "signal(-1)", "exit(x)", "(66)"} {
		if _, err := ParseExpectation(input); err == nil {
			t.Fatalf("ParseExpectation(%q) succeeded, want error", input)
		}
	}
}

func FuzzParseExpectation(f *testing.F) {
	for _, seed := range []string{"return", "abort", "signal(SIGABRT|SIGSEGV)", "exit(66)", "exit(", "signal()"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		exp, err := ParseExpectation(input)
		if err != nil {
			return
		}
		if verr := exp.Validate(); verr != nil {
			t.Fatalf("ParseExpectation(%q) returned invalid policy %v: %v", input, exp, verr)
		}
		again, err := ParseExpectation(exp.String())
		if err != nil {
			t.Fatalf("String() output %q does not parse: %v", exp.String(), err)
		}
		if again.String() != exp.String() {
			t.Fatalf("round trip changed %q to %q", exp.String(), again.String())
		}
	})
}
