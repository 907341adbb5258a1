package fuzztests

import (
	"bytes"
	"testing"
	"time"

	"harness/internal/check"
	"harness/internal/report"
	"harness/internal/runner"
	"harness/internal/testkit"
)

func addReportSeeds(f *testing.F) {
	reports := []runner.Report{
		{},
		{
			Cases:   check.Tally{Total: 1, Passed: 1},
			Checks:  check.Tally{Total: 3, Passed: 3},
			Results: []runner.CaseResult{{Name: "zlib/roundtrip", Expect: "return", Passed: true, Checks: check.Tally{Total: 3, Passed: 3}}},
			Started: time.Unix(1700000000, 0),
		},
		{
			Cases:   check.Tally{Total: 1, Failed: 1},
			Skipped: 1,
			Results: []runner.CaseResult{
				{Name: "zlib/truncated_abort", Expect: "signal(SIGABRT)", Isolated: true, Reason: "exited with code 0, expected signal(SIGABRT)"},
				{Name: "json/array", Expect: "return", Skipped: true},
			},
		},
	}
	for _, rep := range reports {
		var buf bytes.Buffer
		if err := report.Encode(&buf, rep); err != nil {
			f.Fatalf("encode seed: %v", err)
		}
		f.Add(buf.Bytes())
	}
	f.Add([]byte{0xc0})
	f.Add([]byte("not msgpack"))
}

func FuzzReportDecode(f *testing.F) {
	addReportSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		rep, err := report.Decode(bytes.NewReader(clampInput(input)))
		if err != nil {
			return
		}
		// whatever decodes must encode again
		var buf bytes.Buffer
		if err := report.Encode(&buf, rep); err != nil {
			t.Fatalf("re-encode decoded report: %v", err)
		}
		again, err := report.Decode(&buf)
		if err != nil {
			t.Fatalf("decode re-encoded report: %v", err)
		}
		if again.Cases != rep.Cases || len(again.Results) != len(rep.Results) {
			t.Fatalf("round trip changed report: %+v vs %+v", again.Cases, rep.Cases)
		}
		// decoded reports may break invariants, but checking must not panic
		_ = testkit.CheckReportInvariants(rep)
	})
}
