package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"plane-digest/internal/report"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type reportOptions struct {
	from    string
	to      string
	project string
	actor   string
	format  string
	view    string
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the activity digest for a date window",
		Example: `  plane-digest report --from 2024-03-04 --to 2024-03-08
  plane-digest report --from 2024-03-04 --actor shruti.dhasmana --view records --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			window, err := report.ParseWindow(opts.from, opts.to, time.Now())
			if err != nil {
				return err
			}

			res, err := newRunner(cfg).Run(cmd.Context(), report.Request{
				Window:     window,
				Project:    opts.project,
				Actor:      opts.actor,
				Scope:      "cli",
				WithCycles: opts.view == "projects",
			})
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), res, opts.view, opts.format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "", "start of the window (YYYY-MM-DD or RFC 3339; default: 7 days before --to)")
	f.StringVar(&opts.to, "to", "", "end of the window (YYYY-MM-DD covers the whole day; default: now)")
	f.StringVar(&opts.project, "project", "", "project name or identifier")
	f.StringVar(&opts.actor, "actor", "", "only activity by this person")
	f.StringVar(&opts.format, "format", "json", "output format: json or yaml")
	f.StringVar(&opts.view, "view", "people", "what to print: records, people or projects")
	return cmd
}

func (o *reportOptions) validate() error {
	switch o.format {
	case "json", "yaml":
	default:
		return fmt.Errorf("unsupported --format %q (want json or yaml)", o.format)
	}
	switch o.view {
	case "records", "people", "projects":
	default:
		return fmt.Errorf("unsupported --view %q (want records, people or projects)", o.view)
	}
	return nil
}

func writeReport(w io.Writer, res *report.Result, view, format string) error {
	if res.Empty() {
		_, err := fmt.Fprintln(w, report.NoActivityMessage)
		return err
	}

	var data any
	switch view {
	case "records":
		data = res.Records
	case "projects":
		data = res.Projects
	default:
		data = res.People
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
