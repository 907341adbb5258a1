package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"harness/internal/config"
	"harness/internal/isolate"
	"harness/internal/observ"
	"harness/internal/report"
	"harness/internal/runner"
	"harness/internal/suite"
	"harness/internal/trace"
)

var runCmd = &cobra.Command{
	Use:   "run [pattern...]",
	Short: "Run registered cases, optionally filtered by glob",
	Long: `Run every registered case in order and print one line per case followed by
"<passed> / <total> passed". Patterns are path.Match globs; a bare prefix
such as "zlib" selects every "zlib/..." case.`,
	RunE: runCases,
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("isolate", false, "run every case in a child process")
	cmd.Flags().Duration("timeout", 0, "kill an isolated case after this long (0 waits forever)")
	cmd.Flags().Bool("fail-fast", false, "skip the remaining cases after the first failure")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Bool("no-store", false, "do not persist the report for 'harness last'")
}

type runOptions struct {
	patterns   []string
	isolateAll bool
	timeout    time.Duration
	failFast   bool
	format     report.Format
	store      bool
	storeDir   string
	color      bool
	quiet      bool
	timings    bool
	ui         uiMode
}

func runCases(cmd *cobra.Command, args []string) error {
	if err := applyColorFlag(cmd); err != nil {
		return err
	}
	opts, err := readRunOptions(cmd, args)
	if err != nil {
		return err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	heartbeat, cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
	defer stop()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	rep, runErr := executeRun(ctx, registry(), opts, out, errOut, heartbeat)
	if rep.Cases.Total == 0 && rep.Skipped == 0 && runErr != nil {
		return runErr
	}

	if opts.store {
		if err := storeReport(opts.storeDir, rep); err != nil {
			fmt.Fprintf(errOut, "warning: report not stored: %v\n", err)
		}
	}
	if ring, ok := trace.Ring(trace.FromContext(ctx)); ok && rep.ExitCode() != 0 {
		fmt.Fprintln(errOut, "trace ring:")
		if err := ring.Dump(errOut, trace.FormatText); err != nil {
			fmt.Fprintf(errOut, "trace: dump error: %v\n", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if code := rep.ExitCode(); code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

// readRunOptions merges harness.toml with flags. Flags that were set
// explicitly win over the manifest.
func readRunOptions(cmd *cobra.Command, args []string) (runOptions, error) {
	root := cmd.Root().PersistentFlags()
	flags := cmd.Flags()

	configPath, err := root.GetString("config")
	if err != nil {
		return runOptions{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return runOptions{}, err
	}

	opts := runOptions{
		patterns:   cfg.Run.Filter,
		isolateAll: cfg.Run.Isolate,
		timeout:    time.Duration(cfg.Run.Timeout),
		failFast:   cfg.Run.FailFast,
		store:      cfg.Report.Store,
		storeDir:   cfg.Report.Dir,
		color:      !color.NoColor,
	}
	if len(args) > 0 {
		opts.patterns = args
	}

	if flags.Changed("isolate") {
		if opts.isolateAll, err = flags.GetBool("isolate"); err != nil {
			return runOptions{}, fmt.Errorf("failed to get isolate flag: %w", err)
		}
	}
	if flags.Changed("timeout") {
		if opts.timeout, err = flags.GetDuration("timeout"); err != nil {
			return runOptions{}, fmt.Errorf("failed to get timeout flag: %w", err)
		}
		if opts.timeout < 0 {
			return runOptions{}, fmt.Errorf("negative --timeout %s", opts.timeout)
		}
	}
	if flags.Changed("fail-fast") {
		if opts.failFast, err = flags.GetBool("fail-fast"); err != nil {
			return runOptions{}, fmt.Errorf("failed to get fail-fast flag: %w", err)
		}
	}
	noStore, err := flags.GetBool("no-store")
	if err != nil {
		return runOptions{}, fmt.Errorf("failed to get no-store flag: %w", err)
	}
	if noStore {
		opts.store = false
	}

	formatStr, err := flags.GetString("format")
	if err != nil {
		return runOptions{}, fmt.Errorf("failed to get format flag: %w", err)
	}
	switch f := report.Format(strings.ToLower(strings.TrimSpace(formatStr))); f {
	case report.FormatPretty, report.FormatJSON:
		opts.format = f
	default:
		return runOptions{}, fmt.Errorf("unsupported format %q (must be pretty or json)", formatStr)
	}

	if opts.quiet, err = root.GetBool("quiet"); err != nil {
		return runOptions{}, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if opts.timings, err = root.GetBool("timings"); err != nil {
		return runOptions{}, fmt.Errorf("failed to get timings flag: %w", err)
	}
	uiStr, err := root.GetString("ui")
	if err != nil {
		return runOptions{}, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if opts.ui, err = readUIMode(uiStr); err != nil {
		return runOptions{}, err
	}
	return opts, nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		m, err := config.LoadFile(path)
		if err != nil {
			return config.Config{}, err
		}
		return m.Config, nil
	}
	m, _, err := config.Load(".")
	if err != nil {
		return config.Config{}, err
	}
	return m.Config, nil
}

// executeRun filters the registry and runs the selected cases, rendering to
// out and errOut according to opts.
func executeRun(ctx context.Context, reg *suite.Registry, opts runOptions, out, errOut io.Writer, heartbeat *trace.Heartbeat) (runner.Report, error) {
	cases, err := reg.Filter(opts.patterns...)
	if err != nil {
		return runner.Report{}, err
	}

	var timer *observ.Timer
	if opts.timings {
		timer = observ.NewTimer()
	}

	ropts := runner.Options{
		Out:        out,
		Diag:       errOut,
		IsolateAll: opts.isolateAll,
		FailFast:   opts.failFast,
		Color:      opts.color,
		Quiet:      opts.quiet,
		Timer:      timer,
		Heartbeat:  heartbeat,
	}
	inv := &isolate.Invoker{Timeout: opts.timeout, Stdout: out, Stderr: errOut}

	jsonOut := opts.format == report.FormatJSON
	useUI := !jsonOut && len(cases) > 0 && shouldUseTUI(opts.ui)

	// Keep stdout clean for the JSON document.
	if jsonOut {
		ropts.Out = io.Discard
		inv.Stdout = errOut
	}

	var rep runner.Report
	if useUI {
		var diag bytes.Buffer
		ropts.Out = io.Discard
		ropts.Diag = &diag
		inv.Stdout, inv.Stderr = &diag, &diag
		ropts.Isolator = inv

		rep, err = runWithUI(ctx, "harness", cases, ropts)
		if _, werr := diag.WriteTo(errOut); werr != nil && err == nil {
			err = werr
		}
		runner.Print(out, rep, opts.color, opts.quiet)
	} else {
		ropts.Isolator = inv
		rep, err = runner.New(cases, ropts).RunAll(ctx)
	}

	if jsonOut {
		if rerr := report.Render(out, rep, report.FormatJSON, report.RenderOptions{}); rerr != nil && err == nil {
			err = rerr
		}
		if opts.timings {
			printTimings(errOut, timer)
		}
		return rep, err
	}
	if opts.timings {
		printTimings(out, timer)
	}
	return rep, err
}

func storeReport(dir string, rep runner.Report) error {
	st, err := openStore(dir)
	if err != nil {
		return err
	}
	return st.Save(rep)
}

func openStore(dir string) (*report.Store, error) {
	if dir != "" {
		return report.OpenDir(dir)
	}
	return report.Open("harness")
}
