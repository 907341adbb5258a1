package testkit

import (
	"strings"
	"testing"

	"harness/internal/check"
	"harness/internal/runner"
)

func validReport() runner.Report {
	return runner.Report{
		Cases:   check.Tally{Total: 2, Passed: 1, Failed: 1},
		Checks:  check.Tally{Total: 2, Passed: 1, Failed: 1},
		Skipped: 1,
		Results: []runner.CaseResult{
			{Name: "a", Passed: true, Checks: check.Tally{Total: 1, Passed: 1}},
			{Name: "b", Reason: "1 of 1 assertions failed", Checks: check.Tally{Total: 1, Failed: 1}},
			{Name: "c", Skipped: true},
		},
	}
}

func TestCheckReportInvariants(t *testing.T) {
	if err := CheckReportInvariants(validReport()); err != nil {
		t.Fatalf("valid report rejected: %v", err)
	}
	if err := CheckReportInvariants(runner.Report{}); err != nil {
		t.Fatalf("empty report rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*runner.Report)
		want   string
	}{
		{"inconsistent cases", func(r *runner.Report) { r.Cases.Passed = 2 }, "case tally inconsistent"},
		{"missing result", func(r *runner.Report) { r.Results = r.Results[:2] }, "counted"},
		{"skipped and passed", func(r *runner.Report) { r.Results[2].Passed = true }, "both skipped and passed"},
		{"no reason", func(r *runner.Report) { r.Results[1].Reason = "" }, "without a reason"},
		{"checks mismatch", func(r *runner.Report) { r.Results[0].Checks = check.Tally{} }, "check tally"},
		{"verdict mismatch", func(r *runner.Report) {
			r.Results[0].Passed = false
			r.Results[0].Reason = "x"
		}, "does not match results"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := validReport()
			tc.mutate(&rep)
			err := CheckReportInvariants(rep)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
