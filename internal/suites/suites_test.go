package suites

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"harness/internal/check"
	"harness/internal/isolate"
	"harness/internal/runner"
	"harness/internal/suite"
	"harness/internal/testkit"
)

func builtins() *suite.Registry {
	reg := suite.NewRegistry(io.Discard)
	RegisterAll(reg)
	return reg
}

func TestMain(m *testing.M) {
	isolate.MaybeServe(builtins())
	os.Exit(m.Run())
}

func TestRegisterAllOrderAndPolicies(t *testing.T) {
	reg := builtins()
	cases := reg.Cases()
	if len(cases) == 0 {
		t.Fatalf("no built-in cases")
	}
	if cases[0].Name != "zlib/roundtrip" {
		t.Fatalf("first case = %q", cases[0].Name)
	}

	isolated := map[string]string{
		"zlib/truncated_abort":    "signal(SIGABRT)",
		"harness/isolated_return": "return",
		"harness/abort_expected":  "signal(SIGABRT)",
		"harness/exit_sentinel":   "exit(66)",
		"harness/sanitizer_exit":  "exit(168)",
	}
	for _, c := range cases {
		want, ok := isolated[c.Name]
		if c.Isolated() != ok {
			t.Fatalf("%s isolated = %v, want %v", c.Name, c.Isolated(), ok)
		}
		if ok && c.Expect.String() != want {
			t.Fatalf("%s expects %s, want %s", c.Name, c.Expect, want)
		}
	}
}

func TestInProcessCasesPass(t *testing.T) {
	for _, c := range builtins().Cases() {
		if c.Isolated() {
			continue
		}
		t.Run(c.Name, func(t *testing.T) {
			var diag bytes.Buffer
			rec := check.NewRecorder(nil, &diag).WithPrefix(c.Name)
			if err := c.Call(rec); err != nil {
				t.Fatalf("Call: %v", err)
			}
			if rec.Failures() > 0 {
				t.Fatalf("%d assertions failed:\n%s", rec.Failures(), diag.String())
			}
			if _, _, total := rec.Summarize(); total == 0 {
				t.Fatalf("case made no assertions")
			}
		})
	}
}

func TestBuiltinsPassEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns child processes")
	}
	var out, diag bytes.Buffer
	rn := runner.New(builtins().Cases(), runner.Options{Out: &out, Diag: &diag})
	rep, err := rn.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if err := testkit.CheckReportInvariants(rep); err != nil {
		t.Fatalf("report invariants: %v", err)
	}
	if rep.ExitCode() != 0 {
		t.Fatalf("built-in suites failed:\n%s\n%s", out.String(), diag.String())
	}
	if !strings.Contains(out.String(), "[PASS] harness/exit_sentinel") {
		t.Fatalf("output:\n%s", out.String())
	}
	// an expected abort is one [PASS] line and nothing forwarded
	for _, stream := range []string{out.String(), diag.String()} {
		if strings.Contains(stream, "[zlib/truncated_abort] ") {
			t.Fatalf("abort output forwarded:\n%s", stream)
		}
	}
}
