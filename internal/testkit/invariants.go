package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"harness/internal/check"
	"harness/internal/runner"
)

// CheckReportInvariants runs the invariants every report must satisfy:
// 1) both tallies are consistent (passed + failed == total)
// 2) every result is either counted or skipped, never both
// 3) the case tally matches the per-result verdicts
// 4) the check tally is the sum of the per-result check tallies
// 5) the exit code is 0 exactly when no counted case failed
func CheckReportInvariants(rep runner.Report) error {
	if !rep.Cases.Consistent() {
		return fmt.Errorf("case tally inconsistent: %+v", rep.Cases)
	}
	if !rep.Checks.Consistent() {
		return fmt.Errorf("check tally inconsistent: %+v", rep.Checks)
	}

	n, err := safecast.Conv[uint32](len(rep.Results))
	if err != nil {
		return fmt.Errorf("result count overflow: %w", err)
	}
	counted, err := safecast.Conv[uint32](rep.Cases.Total + rep.Skipped)
	if err != nil {
		return fmt.Errorf("case count overflow: %w", err)
	}
	if n != counted {
		return fmt.Errorf("%d results but %d counted + %d skipped", n, rep.Cases.Total, rep.Skipped)
	}

	var cases, checks check.Tally
	skipped := 0
	for i, res := range rep.Results {
		if res.Skipped {
			if res.Passed {
				return fmt.Errorf("result %d (%s) is both skipped and passed", i, res.Name)
			}
			skipped++
			continue
		}
		if !res.Passed && res.Reason == "" {
			return fmt.Errorf("result %d (%s) failed without a reason", i, res.Name)
		}
		cases.Record(res.Passed)
		checks.Add(res.Checks)
	}

	if skipped != rep.Skipped {
		return fmt.Errorf("skipped = %d, results say %d", rep.Skipped, skipped)
	}
	if cases != rep.Cases {
		return fmt.Errorf("case tally %+v does not match results %+v", rep.Cases, cases)
	}
	if checks != rep.Checks {
		return fmt.Errorf("check tally %+v does not match results %+v", rep.Checks, checks)
	}
	if (rep.ExitCode() == 0) != (rep.Cases.Failed == 0) {
		return fmt.Errorf("exit code %d with %d failed cases", rep.ExitCode(), rep.Cases.Failed)
	}
	return nil
}
