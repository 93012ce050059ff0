package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dyncal/internal/capture"
	"dyncal/internal/datefmt"
	"dyncal/internal/grid"
	"dyncal/internal/ics"
	"dyncal/internal/model"
	"dyncal/internal/project"
	"dyncal/internal/termview"
)

func newMonthCmd(opts *globalOptions) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print a month grid with its events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			today := a.today()
			y, m := today.Year, today.Month
			if cmd.Flags().Changed("year") {
				y = year
			}
			if cmd.Flags().Changed("month") {
				if month < 1 || month > 12 {
					return usageError("--month must be between 1 and 12")
				}
				m = month - 1
			}

			res := a.gather(cmd.Context())
			st := termview.DefaultStyles()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, termview.Month(y, m, grid.Month(y, m, res.Events, today), st))
			if u := termview.Unresolved(res.Unresolved, st); u != "" {
				fmt.Fprintln(out, u)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12 (default current)")
	return cmd
}

func newWeekCmd(opts *globalOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the week containing a date with its events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			today := a.today()
			anchor := today
			if date != "" {
				if anchor, err = datefmt.Parse(date, datefmt.ISO); err != nil {
					return usageError("--date: %v", err)
				}
			}

			res := a.gather(cmd.Context())
			st := termview.DefaultStyles()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, termview.Week(grid.WeekDays(anchor, res.Events, today), st))
			if u := termview.Unresolved(res.Unresolved, st); u != "" {
				fmt.Fprintln(out, u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Any day of the week, YYYY-MM-DD (default today)")
	return cmd
}

func newProjectCmd(opts *globalOptions) *cobra.Command {
	var (
		todayFlag string
		layout    string
	)
	cmd := &cobra.Command{
		Use:   "project FILE",
		Short: "Resolve a JSON array of events onto dates and print the result as JSON",
		Long:  "Reads a JSON array of events from FILE (\"-\" for stdin) and prints the resolved events and the ones that could not be placed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var events []model.InputEvent
			if err := json.NewDecoder(r).Decode(&events); err != nil {
				return usageError("decode events: %v", err)
			}

			today := model.DateOf(opts.now().In(cfg.Location()))
			if todayFlag != "" {
				if today, err = datefmt.Parse(todayFlag, datefmt.ISO); err != nil {
					return usageError("--today: %v", err)
				}
			}
			po := project.Options{DateFormat: cfg.Layout()}
			if layout != "" {
				if po.DateFormat, err = datefmt.ParseLayout(layout); err != nil {
					return usageError("--format: %v", err)
				}
			}

			res := project.Project(events, today, po)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&todayFlag, "today", "", "Reference day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&layout, "format", "", "Layout of untagged dates: dmy|mdy|iso (default from config)")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the resolved events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			res := a.gather(cmd.Context())
			body := ics.Export(res.Events, a.cfg.Location(), a.now())
			if outPath == "" || outPath == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			return os.WriteFile(outPath, []byte(body), 0o644)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	var url, outPath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a PNG of a running calendar page with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			co := captureOptions(cfg)
			if url != "" {
				co.URL = url
			}
			if outPath != "" {
				co.OutputPath = outPath
			}
			if err := capture.Snapshot(cmd.Context(), co); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), co.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page to capture (default the local /calendar page)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "PNG output path (default from config)")
	return cmd
}
