// Package grid builds the month and week layouts of the calendar and joins
// resolved events onto their cells.
//
// All functions are pure: they read only their arguments and allocate a
// fresh result on every call.
package grid

import (
	"time"

	"dyncal/internal/model"
)

// DaysPerWeek is the width of every grid row. Weeks start on Sunday.
const DaysPerWeek = 7

// DaysIn returns the number of days of a zero-based month, with carry.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// Build returns the weeks covering (year, month). The first week starts
// with the trailing days of the previous month and the last week ends with
// the leading days of the next month, just enough to complete 7 cells.
//
// month is zero-based; out-of-range values carry into the year.
func Build(year, month int) [][]model.Cell {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)
	year, month = first.Year(), int(first.Month())-1

	daysInMonth := DaysIn(year, month)
	startWeekday := int(first.Weekday())

	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)
	daysInPrev := DaysIn(prev.Year(), int(prev.Month())-1)

	cells := make([]model.Cell, 0, 42)
	for i := 0; i < startWeekday; i++ {
		cells = append(cells, model.Cell{
			Day:   daysInPrev - startWeekday + i + 1,
			Month: int(prev.Month()) - 1,
			Year:  prev.Year(),
		})
	}
	for day := 1; day <= daysInMonth; day++ {
		cells = append(cells, model.Cell{Day: day, Month: month, Year: year})
	}
	if rem := len(cells) % DaysPerWeek; rem != 0 {
		for day := 1; day <= DaysPerWeek-rem; day++ {
			cells = append(cells, model.Cell{
				Day:   day,
				Month: int(next.Month()) - 1,
				Year:  next.Year(),
			})
		}
	}

	weeks := make([][]model.Cell, 0, len(cells)/DaysPerWeek)
	for i := 0; i < len(cells); i += DaysPerWeek {
		weeks = append(weeks, cells[i:i+DaysPerWeek:i+DaysPerWeek])
	}
	return weeks
}

// Flatten concatenates weeks back into one cell sequence.
func Flatten(weeks [][]model.Cell) []model.Cell {
	out := make([]model.Cell, 0, len(weeks)*DaysPerWeek)
	for _, w := range weeks {
		out = append(out, w...)
	}
	return out
}

// ShiftMonth moves (year, month) by n months with year carry.
func ShiftMonth(year, month, n int) (int, int) {
	t := time.Date(year, time.Month(month+1+n), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), int(t.Month()) - 1
}

// Week returns the Sunday-first week containing anchor.
func Week(anchor model.Date) []model.Cell {
	start := anchor.Normalize()
	start = start.AddDays(-int(start.Weekday()))

	out := make([]model.Cell, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		d := start.AddDays(i)
		out = append(out, model.Cell{Day: d.Day, Month: d.Month, Year: d.Year})
	}
	return out
}

// ShiftWeek moves anchor by n weeks.
func ShiftWeek(anchor model.Date, n int) model.Date {
	return anchor.AddDays(7 * n)
}
