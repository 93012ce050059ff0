package grid

import (
	"fmt"
	"time"

	"dyncal/internal/datefmt"
	"dyncal/internal/model"
)

// Day is a cell with the events placed on it.
type Day struct {
	model.Cell
	Events []model.ResolvedEvent `json:"events"`
	// InMonth is false for padding cells of adjacent months.
	InMonth bool `json:"in_month"`
	Today   bool `json:"today"`
}

// Index groups events by their date key, keeping projector order within a
// key.
func Index(events []model.ResolvedEvent) map[string][]model.ResolvedEvent {
	idx := make(map[string][]model.ResolvedEvent)
	for _, ev := range events {
		k := ev.Key()
		idx[k] = append(idx[k], ev)
	}
	return idx
}

// Attach joins events onto cells by (day, month, year). Cells without a
// match get an empty, non-nil slice.
func Attach(cells []model.Cell, events []model.ResolvedEvent) [][]model.ResolvedEvent {
	idx := Index(events)
	out := make([][]model.ResolvedEvent, len(cells))
	for i, c := range cells {
		matched := idx[c.Key()]
		out[i] = make([]model.ResolvedEvent, len(matched))
		copy(out[i], matched)
	}
	return out
}

// Month builds the grid for (year, month) and attaches events, marking
// padding cells and today.
func Month(year, month int, events []model.ResolvedEvent, today model.Date) [][]Day {
	year, selected := ShiftMonth(year, month, 0)
	weeks := Build(year, selected)

	idx := Index(events)
	out := make([][]Day, len(weeks))
	for w, week := range weeks {
		out[w] = make([]Day, len(week))
		for i, c := range week {
			out[w][i] = Day{
				Cell:    c,
				Events:  append([]model.ResolvedEvent{}, idx[c.Key()]...),
				InMonth: c.Month == selected,
				Today:   c.Date() == today,
			}
		}
	}
	return out
}

// WeekDays attaches events onto the Sunday-first week containing anchor.
func WeekDays(anchor model.Date, events []model.ResolvedEvent, today model.Date) []Day {
	cells := Week(anchor)
	attached := Attach(cells, events)
	out := make([]Day, len(cells))
	for i, c := range cells {
		out[i] = Day{
			Cell:    c,
			Events:  attached[i],
			InMonth: true,
			Today:   c.Date() == today,
		}
	}
	return out
}

// TimeSlots returns the hourly rows of the week view, 06:00 through 24:00.
func TimeSlots() []string {
	slots := make([]string, 0, 19)
	for h := 6; h <= 24; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}

// AtSlot returns the events whose start hour equals the slot's hour.
func AtSlot(events []model.ResolvedEvent, slot string) []model.ResolvedEvent {
	want, ok := datefmt.Hour(slot)
	if !ok {
		return nil
	}
	var out []model.ResolvedEvent
	for _, ev := range events {
		if h, ok := datefmt.Hour(ev.Time); ok && h == want {
			out = append(out, ev)
		}
	}
	return out
}

// WeekLabel renders the week selector caption, e.g. "10 - 16 de Março" or
// "30 Março - 5 Abril" when the week spans two months.
func WeekLabel(week []model.Cell) string {
	if len(week) == 0 {
		return ""
	}
	first, last := week[0], week[len(week)-1]
	if first.Month == last.Month {
		return fmt.Sprintf("%d - %d de %s", first.Day, last.Day, datefmt.MonthName(first.Month))
	}
	return fmt.Sprintf("%d %s - %d %s", first.Day, datefmt.MonthName(first.Month), last.Day, datefmt.MonthName(last.Month))
}

// Header returns the Sunday-first weekday captions of the month grid.
func Header() []string {
	out := make([]string, DaysPerWeek)
	for i := range out {
		out[i] = datefmt.ShortWeekdayName(time.Weekday(i))
	}
	return out
}
