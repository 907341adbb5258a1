package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"harness/internal/runner"
	"harness/internal/suite"
	"harness/internal/ui"
)

type runOutcome struct {
	report runner.Report
	err    error
}

// runWithUI runs cases in the background and renders their progress until
// the run finishes. Leaving the view early cancels the run.
func runWithUI(ctx context.Context, title string, cases []suite.Case, opts runner.Options) (runner.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan runner.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	names := make([]string, len(cases))
	for i, c := range cases {
		names[i] = c.Name
	}

	go func() {
		opts.Progress = runner.ChannelSink{Ch: events}
		rep, err := runner.New(cases, opts).RunAll(ctx)
		outcomeCh <- runOutcome{report: rep, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()

	// The view may have quit before the run; stop it and drain its events.
	cancel()
	go func() {
		for range events {
		}
	}()

	outcome := <-outcomeCh
	if outcome.err != nil {
		return outcome.report, outcome.err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return outcome.report, fmt.Errorf("progress view: %w", uiErr)
	}
	return outcome.report, nil
}
