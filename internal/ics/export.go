package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"dyncal/internal/datefmt"
	"dyncal/internal/model"
)

const productID = "-//dyncal//Dynamic Calendar//PT"

// uidSpace namespaces the name-based UIDs of exported events.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://dynamiccalendarapi.onrender.com/schedule"))

// UID returns a stable UID for ev, so re-exports update rather than
// duplicate entries in subscribed clients.
func UID(ev model.ResolvedEvent) string {
	name := strings.Join([]string{ev.ID, ev.Key(), ev.StartTime, ev.Title}, "|")
	return uuid.NewSHA1(uidSpace, []byte(name)).String() + "@dyncal"
}

// Export serializes resolved events as a PUBLISH calendar. Events with a
// valid HH:MM start are timed in loc, the rest are all-day. A missing or
// non-increasing end time yields a one-hour event.
func Export(events []model.ResolvedEvent, loc *time.Location, stamp time.Time) string {
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendarFor("dyncal")
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Dynamic Calendar")

	for _, ev := range events {
		ve := cal.AddEvent(UID(ev))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Color != "" {
			ve.SetColor(ev.Color)
		}

		day := ev.On().Time(loc)
		start, ok := atClock(day, ev.StartTime)
		if !ok {
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
			continue
		}
		end, ok := atClock(day, ev.EndTime)
		if !ok || !end.After(start) {
			end = start.Add(time.Hour)
		}
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}
	return cal.Serialize()
}

func atClock(day time.Time, clock string) (time.Time, bool) {
	if !datefmt.ValidClock(clock) {
		return time.Time{}, false
	}
	t, _ := time.Parse("15:04", clock)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), true
}
