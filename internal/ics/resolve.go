package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"dyncal/internal/datefmt"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
)

// Inputs turns parsed events into date-anchored input events in loc.
// A recurring event contributes its nearest instance on or after today,
// with EXDATEs removed and a matching RECURRENCE-ID override applied. Rules
// with no instance left are skipped. Overrides never stand alone.
func Inputs(events []Event, today model.Date, loc *time.Location) []model.InputEvent {
	if loc == nil {
		loc = time.Local
	}

	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	out := make([]model.InputEvent, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride() {
			continue
		}
		if ev.RawRRule == "" {
			out = append(out, toInput(ev, ev.Start, ev.End, loc))
			continue
		}

		start, ok := nextInstance(ev, today, loc)
		if !ok {
			appLog.Debug("ics: recurring event has no upcoming instance", "uid", ev.UID)
			continue
		}
		end := start.Add(ev.End.Sub(ev.Start))
		if o, ok := findOverride(overrides[ev.UID], start); ok {
			out = append(out, toInput(o, o.Start, o.End, loc))
			continue
		}
		out = append(out, toInput(ev, start, end, loc))
	}
	return out
}

func nextInstance(ev Event, today model.Date, loc *time.Location) (time.Time, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return time.Time{}, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from := today.Time(loc)
	if ev.AllDay {
		from = today.Time(ev.Start.Location())
	}
	next := set.After(from, true)
	return next, !next.IsZero()
}

func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func toInput(ev Event, start, end time.Time, loc *time.Location) model.InputEvent {
	in := model.InputEvent{
		ID:          ev.UID,
		DateFormat:  string(datefmt.ISO),
		Title:       ev.Summary,
		Description: ev.Description,
		Color:       ev.Color,
	}
	if in.Description == "" {
		in.Description = ev.Location
	}
	if ev.AllDay {
		in.Date = datefmt.Format(model.DateOf(start), datefmt.ISO)
		return in
	}
	start, end = start.In(loc), end.In(loc)
	in.Date = datefmt.Format(model.DateOf(start), datefmt.ISO)
	in.StartTime = start.Format("15:04")
	if end.After(start) {
		in.EndTime = end.Format("15:04")
	}
	return in
}
