package main

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"harness/internal/suite"
)

var listCmd = &cobra.Command{
	Use:   "list [pattern...]",
	Short: "List registered cases in run order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := registry().Filter(args...)
		if err != nil {
			return err
		}
		printCaseList(cmd.OutOrStdout(), cases)
		return nil
	},
}

// printCaseList writes one line per case: name, where it runs and what
// termination it expects.
func printCaseList(out io.Writer, cases []suite.Case) {
	width := 0
	for _, c := range cases {
		if w := runewidth.StringWidth(c.Name); w > width {
			width = w
		}
	}
	for _, c := range cases {
		where := "in-process"
		if c.Isolated() {
			where = "isolated"
		}
		fmt.Fprintf(out, "%s  %-10s  %s\n", runewidth.FillRight(c.Name, width), where, c.Expect)
	}
	fmt.Fprintf(out, "%d cases\n", len(cases))
}
