package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"harness/internal/isolate"
	"harness/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "harness",
	Short:         "Run the built-in test suites",
	Long:          `harness runs its registered cases in order, isolating the ones that may crash, and exits non-zero if any case failed`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runCases,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCodeError carries a process exit code without a message.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "print only failures and the summary")
	rootCmd.PersistentFlags().Bool("timings", false, "show per-case timing information")
	rootCmd.PersistentFlags().String("ui", "auto", "live progress view (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to harness.toml (default: search upwards from the working directory)")

	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|run|case|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer capacity for ring/both modes")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "heartbeat interval naming the running case (0 disables)")

	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile of in-process cases to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file after the run")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")

	addRunFlags(rootCmd)
}

// main serves an isolated case when started as a child, and runs the CLI
// otherwise. The child check comes first so a child never parses flags.
func main() {
	isolate.MaybeServe(registry())

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
