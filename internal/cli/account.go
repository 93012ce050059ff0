package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dyncal/internal/auth"
	"dyncal/internal/datefmt"
	"dyncal/internal/project"
	"dyncal/internal/schedule"
	"dyncal/internal/study"
	"dyncal/internal/termview"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the schedule API and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			if err := a.requireOnline("login"); err != nil {
				return err
			}
			if err := a.auth.Login(cmd.Context(), user, password); err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					return &ExitError{Code: 3, Err: err}
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged in as", user)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			return a.auth.Logout()
		},
	}
}

func newSignupCmd(opts *globalOptions) *cobra.Command {
	var user, password, confirm string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on the schedule API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			if err := a.requireOnline("signup"); err != nil {
				return err
			}
			err = a.auth.CreateUser(cmd.Context(), user, password, confirm)
			switch {
			case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch):
				return &ExitError{Code: 2, Err: err}
			case errors.Is(err, auth.ErrUserExists):
				return &ExitError{Code: 3, Err: err}
			case err != nil:
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "account created:", user)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation")
	return cmd
}

func newCreateCmd(opts *globalOptions) *cobra.Command {
	var ev struct {
		date, start, end, title, description, createdBy string
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dated event on the schedule API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			if err := a.requireOnline("create"); err != nil {
				return err
			}
			on, err := datefmt.Parse(ev.date, datefmt.DMY)
			if err != nil {
				return usageError("--date: %v", err)
			}
			created, err := a.schedule.Create(cmd.Context(), schedule.NewEvent{
				Date:        on,
				StartTime:   ev.start,
				EndTime:     ev.end,
				Title:       ev.title,
				Description: ev.description,
				CreatedBy:   ev.createdBy,
			})
			if errors.Is(err, schedule.ErrInvalidEvent) {
				return &ExitError{Code: 2, Err: err}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s on %s %s-%s\n", created.Title, created.Date, created.StartTime, created.EndTime)
			return nil
		},
	}
	cmd.Flags().StringVar(&ev.date, "date", "", "Day of the event, DD/MM/YYYY")
	cmd.Flags().StringVar(&ev.start, "start", "", "Start time, HH:MM")
	cmd.Flags().StringVar(&ev.end, "end", "", "End time, HH:MM")
	cmd.Flags().StringVar(&ev.title, "title", "", "Title")
	cmd.Flags().StringVar(&ev.description, "description", "", "Description")
	cmd.Flags().StringVar(&ev.createdBy, "created-by", "", "Creator user id")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newStudyCmd(opts *globalOptions) *cobra.Command {
	var (
		name   string
		days   []string
		submit bool
	)
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Build a weekly study schedule with a subject per slot",
		Example: `  dyncal study --name ENEM --day 1=08:00,19:00 --day 3
  dyncal study --name ENEM --day seg=08:00 --submit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			plan, err := parseDayPlans(days)
			if err != nil {
				return usageError("--day: %v", err)
			}

			wz := study.New(a.cfg.StudySubjects, nil)
			if err := wz.Run(name, plan); err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			if submit {
				if err := a.requireOnline("study --submit"); err != nil {
					return err
				}
				if err := wz.Submit(cmd.Context(), a.api); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, termview.StudyTable(wz.Preview(), termview.DefaultStyles()))
			res := project.Project(wz.Entries(), a.today(), project.Options{})
			for _, ev := range res.Events {
				fmt.Fprintf(out, "%s %s %s\n", ev.Date, ev.Time, ev.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringArrayVar(&days, "day", nil, "Weekday and optional slot starts, e.g. 1=08:00,19:00 or terça")
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the schedule to the API")
	return cmd
}

// parseDayPlans reads "WEEKDAY[=HH:MM,...]" values. WEEKDAY is 0-6 or a
// weekday name.
func parseDayPlans(values []string) ([]study.DayPlan, error) {
	out := make([]study.DayPlan, 0, len(values))
	for _, v := range values {
		day, starts, _ := strings.Cut(v, "=")
		wd, ok := datefmt.MatchWeekday(day)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		plan := study.DayPlan{Weekday: wd}
		for _, s := range strings.Split(starts, ",") {
			if s = strings.TrimSpace(s); s != "" {
				plan.Starts = append(plan.Starts, s)
			}
		}
		out = append(out, plan)
	}
	return out, nil
}
