package observ

import (
	"strings"
	"testing"
)

func TestTimerRecordsPhasesInOrder(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("zlib/roundtrip")
	b := tm.Begin("json/decode")
	tm.End(b, "passed")
	tm.End(a, "failed")
	tm.End(99, "ignored")

	rep := tm.Report()
	if len(rep.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(rep.Phases))
	}
	if rep.Phases[0].Name != "zlib/roundtrip" || rep.Phases[0].Note != "failed" {
		t.Fatalf("first phase = %+v", rep.Phases[0])
	}
	if rep.TotalMS < rep.Phases[0].DurationMS {
		t.Fatalf("total %.3f smaller than a phase %.3f", rep.TotalMS, rep.Phases[0].DurationMS)
	}

	sum := tm.Summary()
	for _, want := range []string{"timings:", "json/decode", "// passed", "total"} {
		if !strings.Contains(sum, want) {
			t.Fatalf("summary missing %q:\n%s", want, sum)
		}
	}
}

func TestNilTimerIsNoop(t *testing.T) {
	var tm *Timer
	idx := tm.Begin("x")
	tm.End(idx, "y")
	if tm.Len() != 0 || len(tm.Report().Phases) != 0 {
		t.Fatalf("nil timer recorded phases")
	}
}
