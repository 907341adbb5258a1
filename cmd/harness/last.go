package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"harness/internal/report"
)

var lastFormat string

func init() {
	lastCmd.Flags().StringVar(&lastFormat, "format", "pretty", "output format (pretty|json|yaml)")
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the report of the last run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColorFlag(cmd); err != nil {
			return err
		}
		format, err := report.ParseFormat(lastFormat)
		if err != nil {
			return err
		}
		configPath, err := cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return fmt.Errorf("failed to get config flag: %w", err)
		}
		quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
		if err != nil {
			return fmt.Errorf("failed to get quiet flag: %w", err)
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		st, err := openStore(cfg.Report.Dir)
		if err != nil {
			return err
		}
		rep, err := st.Load()
		if errors.Is(err, report.ErrNoReport) {
			return fmt.Errorf("%w in %s; run 'harness run' first", err, st.Dir())
		}
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout(), rep, format, report.RenderOptions{
			Color:  !color.NoColor,
			Quiet:  quiet,
			Header: true,
		})
	},
}
