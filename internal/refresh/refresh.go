// Package refresh keeps the current list of input events: remote schedule,
// ICS subscriptions and static events from the config, re-gathered on a
// cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dyncal/internal/capture"
	"dyncal/internal/fetch"
	"dyncal/internal/ics"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
)

// ScheduleSource yields the remote schedule. *schedule.Client satisfies it.
type ScheduleSource interface {
	Fetch(ctx context.Context) ([]model.InputEvent, error)
}

type Options struct {
	Schedule ScheduleSource // may be nil
	Fetcher  *fetch.Fetcher
	ICS      []ics.Source
	Static   []model.InputEvent

	// Location is the zone "today" is taken in for ICS recurrences.
	Location *time.Location

	// Capture, when set, runs after every refresh with CaptureOptions.
	Capture        capture.Func
	CaptureOptions capture.Options
}

// Refresher holds the latest gathered events. Safe for concurrent use.
type Refresher struct {
	opts Options
	now  func() time.Time

	mu      sync.RWMutex
	remote  []model.InputEvent
	local   []model.InputEvent
	updated time.Time
	lastErr error
	hooks   []func()

	runMu sync.Mutex
}

func New(opts Options) *Refresher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.New(nil, "")
	}
	return &Refresher{opts: opts, now: time.Now}
}

// OnRefresh registers fn to run after each refresh and each Add.
func (r *Refresher) OnRefresh(fn func()) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Events returns static events, then the remote schedule, then ICS events,
// then events added locally that no refresh has fetched back yet.
func (r *Refresher) Events() []model.InputEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.InputEvent, 0, len(r.opts.Static)+len(r.remote)+len(r.local))
	out = append(out, r.opts.Static...)
	out = append(out, r.remote...)
	return append(out, r.local...)
}

// Add appends ev. It is kept across refreshes until a gathered event
// carries the same ID.
func (r *Refresher) Add(ev model.InputEvent) {
	r.mu.Lock()
	r.local = append(r.local, ev)
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Status reports the time of the last refresh and its error, if any.
func (r *Refresher) Status() (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated, r.lastErr
}

// Refresh gathers all sources. A failing source contributes no events and
// its error is joined into the result; the others are still stored.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := r.now()
	var (
		gathered []model.InputEvent
		errs     []error
	)

	if r.opts.Schedule != nil {
		evs, err := r.opts.Schedule.Fetch(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		gathered = append(gathered, evs...)
	}

	if len(r.opts.ICS) > 0 {
		parsed, err := ics.FetchAll(ctx, r.opts.Fetcher, r.opts.ICS)
		if err != nil {
			errs = append(errs, err)
		}
		today := model.DateOf(started.In(r.opts.Location))
		gathered = append(gathered, ics.Inputs(parsed, today, r.opts.Location)...)
	}

	err := errors.Join(errs...)
	r.mu.Lock()
	r.remote = gathered
	r.local = pending(r.local, gathered)
	r.updated = started
	r.lastErr = err
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	appLog.Info("refresh completed", "events", len(gathered), "static", len(r.opts.Static), "failed_sources", len(errs))

	if r.opts.Capture != nil {
		if cerr := r.opts.Capture(ctx, r.opts.CaptureOptions); cerr != nil {
			appLog.Error("snapshot after refresh failed", cerr)
			err = errors.Join(err, cerr)
		}
	}
	return err
}

// pending returns the local events without a gathered copy. Events
// without an ID are never fetched back and are always kept.
func pending(local, gathered []model.InputEvent) []model.InputEvent {
	if len(local) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(gathered))
	for _, ev := range gathered {
		if ev.ID != "" {
			ids[ev.ID] = struct{}{}
		}
	}
	out := make([]model.InputEvent, 0, len(local))
	for _, ev := range local {
		if _, ok := ids[ev.ID]; ok && ev.ID != "" {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Start refreshes once, then on every tick of spec until ctx is done.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New(
		cron.WithLocation(r.opts.Location),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := r.Refresh(ctx); err != nil {
			appLog.Warn("scheduled refresh degraded", "error", err.Error())
		}
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}

	if err := r.Refresh(ctx); err != nil {
		appLog.Warn("initial refresh degraded", "error", err.Error())
	}

	c.Start()
	appLog.Info("refresh scheduler started", "spec", spec)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}

// cronLogger routes cron's own logging into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
