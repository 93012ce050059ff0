// Package project resolves input events onto concrete calendar dates.
package project

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"dyncal/internal/datefmt"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
)

// Options configures a projection.
type Options struct {
	// DateFormat is used for date-anchored events that do not carry their
	// own format tag. Defaults to datefmt.DMY.
	DateFormat datefmt.Layout
}

// Result is the output of Project. Events keeps the relative input order;
// Unresolved lists inputs that could not be placed, so
// len(Events)+len(Unresolved) always equals the input length.
type Result struct {
	Events     []model.ResolvedEvent `json:"events"`
	Unresolved []model.Unresolved    `json:"unresolved,omitempty"`
}

// Project resolves every input event against today. Date-anchored events
// land on their literal date; weekday-anchored events land on the next
// occurrence of that weekday on or after today.
func Project(events []model.InputEvent, today model.Date, opts Options) Result {
	if opts.DateFormat == "" {
		opts.DateFormat = datefmt.DMY
	}
	today = today.Normalize()

	res := Result{Events: make([]model.ResolvedEvent, 0, len(events))}
	for i, ev := range events {
		id := ev.ID
		if id == "" {
			id = fmt.Sprintf("event-%d", i)
		}

		on, err := resolveDate(ev, today, opts)
		if err != nil {
			appLog.Debug("project: unresolved event", "index", i, "id", id, "reason", err.Error())
			res.Unresolved = append(res.Unresolved, model.Unresolved{
				Index:  i,
				ID:     id,
				Title:  ev.Title,
				Reason: err.Error(),
			})
			continue
		}

		res.Events = append(res.Events, model.ResolvedEvent{
			ID:          id,
			Day:         on.Day,
			Month:       on.Month,
			Year:        on.Year,
			Date:        datefmt.Format(on, datefmt.DMY),
			Time:        ev.Start(),
			StartTime:   ev.Start(),
			EndTime:     ev.EndTime,
			Title:       ev.Title,
			Description: describe(ev),
			Color:       colorOf(ev),
		})
	}
	return res
}

func resolveDate(ev model.InputEvent, today model.Date, opts Options) (model.Date, error) {
	if ev.Anchored() {
		layout := opts.DateFormat
		if ev.DateFormat != "" {
			l, err := datefmt.ParseLayout(ev.DateFormat)
			if err != nil {
				return model.Date{}, err
			}
			layout = l
		}
		return datefmt.Parse(ev.Date, layout)
	}
	if ev.DayOfWeek == "" {
		return model.Date{}, fmt.Errorf("event has neither date nor weekday")
	}
	wd, ok := datefmt.MatchWeekday(ev.DayOfWeek)
	if !ok {
		return model.Date{}, fmt.Errorf("unrecognized weekday %q", ev.DayOfWeek)
	}
	return NextWeekday(today, wd)
}

// rrule weekdays are Monday-first.
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// NextWeekday returns the first wd on or after today: the single instance
// of a weekly rule starting today.
func NextWeekday(today model.Date, wd time.Weekday) (model.Date, error) {
	if wd < time.Sunday || wd > time.Saturday {
		return model.Date{}, fmt.Errorf("weekday %d out of range", wd)
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   today.Time(time.UTC),
		Count:     1,
		Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
	})
	if err != nil {
		return model.Date{}, fmt.Errorf("weekly rule for %s: %w", wd, err)
	}
	occ := r.All()
	if len(occ) != 1 {
		return model.Date{}, fmt.Errorf("no %s on or after %s", wd, today)
	}
	return model.DateOf(occ[0]), nil
}

func describe(ev model.InputEvent) string {
	if ev.Description != "" {
		return ev.Description
	}
	if ev.Start() == "" && ev.EndTime == "" {
		return ""
	}
	return ev.Start() + " - " + ev.EndTime
}

func colorOf(ev model.InputEvent) string {
	if ev.Color != "" {
		return ev.Color
	}
	return DeriveColor(ev.Title)
}
