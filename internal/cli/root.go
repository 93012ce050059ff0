// Package cli wires the dyncal commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dyncal/internal/auth"
	"dyncal/internal/capture"
	"dyncal/internal/config"
	"dyncal/internal/fetch"
	"dyncal/internal/ics"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
	"dyncal/internal/project"
	"dyncal/internal/refresh"
	"dyncal/internal/remote"
	"dyncal/internal/schedule"
	"dyncal/internal/web"
)

var version = "0.1.0-dev"

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Err: fmt.Errorf(format, args...)}
}

type globalOptions struct {
	Config   string
	Listen   string
	LogLevel string
	Offline  bool

	now func() time.Time
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{now: time.Now})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "dyncal",
		Short:         "Dynamic calendar: month and week views over a remote schedule and ICS feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetVersionTemplate("dyncal {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.Config, "config", filepath.Join(config.DefaultDir(), "config.yaml"), "Path to config file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (overrides config if set)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config if set)")
	root.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "Use only events from the config file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMonthCmd(opts))
	root.AddCommand(newWeekCmd(opts))
	root.AddCommand(newProjectCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newSnapshotCmd(opts))
	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newSignupCmd(opts))
	root.AddCommand(newCreateCmd(opts))
	root.AddCommand(newStudyCmd(opts))
	return root
}

// loadConfig loads the config file and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: fmt.Errorf("load config: %w", err)}
	}
	if o.Listen != "" {
		cfg.Listen = o.Listen
		cfg.Snapshot.URL = ""
		cfg.Normalize()
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg       *config.Config
	now       func() time.Time
	offline   bool
	tokens    *auth.TokenStore
	api       *remote.Client
	fetcher   *fetch.Fetcher
	schedule  *schedule.Client
	auth      *auth.Service
	refresher *refresh.Refresher
}

// newApp loads the config and builds the collaborators. configure may
// adjust the refresher options before the refresher is built.
func (o *globalOptions) newApp(configure ...func(*app, *refresh.Options)) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, now: o.now, offline: o.Offline}

	a.tokens = auth.NewTokenStore(cfg.TokenPath)
	a.api = remote.New(cfg.APIBaseURL)
	a.api.Token = func() string { return a.tokens.Valid(a.now()) }
	a.fetcher = fetch.New(&http.Client{Timeout: 20 * time.Second}, cfg.CacheDir)
	a.schedule = schedule.New(a.api, a.fetcher)
	a.auth = auth.NewService(a.api, a.tokens)

	ro := refresh.Options{
		Fetcher:  a.fetcher,
		Static:   cfg.StaticEvents(),
		Location: cfg.Location(),
	}
	if !o.Offline {
		ro.Schedule = a.schedule
		for _, src := range cfg.ICS {
			ro.ICS = append(ro.ICS, ics.Source{ID: src.ID, URL: src.URL})
		}
	}
	for _, fn := range configure {
		fn(a, &ro)
	}
	a.refresher = refresh.New(ro)
	return a, nil
}

// webDeps returns the server collaborators. Offline, the server creates
// events locally and the endpoints needing the API answer 503.
func (a *app) webDeps() web.Deps {
	deps := web.Deps{Store: a.refresher}
	if a.offline {
		return deps
	}
	deps.Schedule = a.schedule
	deps.Auth = a.auth
	deps.API = a.api
	return deps
}

// requireOnline rejects commands that talk to the API under --offline.
func (a *app) requireOnline(command string) error {
	if a.offline {
		return usageError("%s needs the schedule API; drop --offline", command)
	}
	return nil
}

func captureOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		URL:        cfg.Snapshot.URL,
		OutputPath: cfg.Snapshot.Output,
		Width:      cfg.Snapshot.Width,
		Height:     cfg.Snapshot.Height,
	}
}

func (a *app) today() model.Date {
	return model.DateOf(a.now().In(a.cfg.Location()))
}

// gather refreshes once and projects everything against today. A degraded
// refresh is logged; what could be gathered is still projected.
func (a *app) gather(ctx context.Context) project.Result {
	if err := a.refresher.Refresh(ctx); err != nil {
		appLog.Warn("refresh degraded", "error", err.Error())
	}
	return project.Project(a.refresher.Events(), a.today(), project.Options{DateFormat: a.cfg.Layout()})
}
