package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"harness/internal/runner"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be pretty, json or yaml)", s)
	}
}

// RenderOptions tune the pretty format.
type RenderOptions struct {
	Color  bool
	Quiet  bool
	Header bool
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep runner.Report, format Format, opts RenderOptions) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case FormatPretty, "":
		if opts.Header {
			fmt.Fprintf(w, "run of %s (%s)\n", rep.Started.Format(time.RFC3339), rep.Duration.Round(time.Millisecond))
		}
		runner.Print(w, rep, opts.Color, opts.Quiet)
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
