package runner

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printer writes the human-readable report lines:
//
//	[PASS] name
//	[FAIL] name: reason
//	<passed> / <total> passed
type printer struct {
	out   io.Writer
	quiet bool
	pass  *color.Color
	fail  *color.Color
	skip  *color.Color
	sum   *color.Color
}

func newPrinter(out io.Writer, colorize, quiet bool) *printer {
	p := &printer{
		out:   out,
		quiet: quiet,
		pass:  color.New(color.FgGreen, color.Bold),
		fail:  color.New(color.FgRed, color.Bold),
		skip:  color.New(color.FgYellow),
		sum:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.skip, p.sum} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) result(res CaseResult) {
	switch {
	case res.Skipped:
		if !p.quiet {
			fmt.Fprintf(p.out, "%s %s\n", p.skip.Sprint("[SKIP]"), res.Name)
		}
	case res.Passed:
		if !p.quiet {
			fmt.Fprintf(p.out, "%s %s\n", p.pass.Sprint("[PASS]"), res.Name)
		}
	default:
		fmt.Fprintf(p.out, "%s %s: %s\n", p.fail.Sprint("[FAIL]"), res.Name, res.Reason)
	}
}

func (p *printer) summary(rep Report) {
	line := rep.Cases.String()
	if rep.Skipped > 0 {
		line += fmt.Sprintf(" (%d skipped)", rep.Skipped)
	}
	if rep.Cases.OK() {
		fmt.Fprintln(p.out, p.sum.Sprint(line))
		return
	}
	fmt.Fprintln(p.out, p.fail.Sprint(line))
}

// Print writes the result lines and the summary of rep.
func Print(out io.Writer, rep Report, colorize, quiet bool) {
	p := newPrinter(out, colorize, quiet)
	for _, res := range rep.Results {
		p.result(res)
	}
	p.summary(rep)
}
