package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is the canonical internal calendar date. Month is zero-based (0-11)
// like every month value in dyncal, so it can be compared directly with
// Cell.Month and ResolvedEvent.Month.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m) - 1, Day: d}
}

// Time returns local midnight of d in loc. Out-of-range fields carry
// (month 12 is January of the next year).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, time.Month(d.Month+1), d.Day, 0, 0, 0, 0, loc)
}

// Normalize applies calendar carry to out-of-range fields.
func (d Date) Normalize() Date {
	return DateOf(d.Time(time.UTC))
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// Key is the join key shared by cells and resolved events.
func (d Date) Key() string {
	return fmt.Sprintf("%d-%d-%d", d.Year, d.Month, d.Day)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month+1, d.Day)
}

// Cell is one visible grid square. Month may differ from the selected month
// for padding days.
type Cell struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (c Cell) Date() Date {
	return Date{Year: c.Year, Month: c.Month, Day: c.Day}
}

func (c Cell) Key() string {
	return c.Date().Key()
}

// InputEvent is an event as supplied by a caller, a form or the remote
// schedule API, before projection. It is either date-anchored (Date set) or
// weekday-anchored (DayOfWeek set).
type InputEvent struct {
	ID string `json:"id,omitempty"`

	// Date is interpreted under DateFormat when set, otherwise under the
	// projector's configured format.
	Date       string `json:"date,omitempty"`
	DateFormat string `json:"date_format,omitempty"`

	// DayOfWeek is a numeric weekday ("0".."6", Sunday first) or a
	// localized weekday name.
	DayOfWeek string `json:"day_of_week,omitempty"`

	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Time      string `json:"time,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Anchored reports whether the event carries an explicit date.
func (e InputEvent) Anchored() bool {
	return e.Date != ""
}

// Start returns the start time of the event, preferring StartTime over Time.
func (e InputEvent) Start() string {
	if e.StartTime != "" {
		return e.StartTime
	}
	return e.Time
}

// inputEventWire accepts the field spellings found across the schedule API
// and the Portuguese study-schedule payloads.
type inputEventWire struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Data         string `json:"data"`
	DateFormat   string `json:"date_format"`
	DayOfWeek    string `json:"day_of_week"`
	DayOfWeekAlt string `json:"dayOfWeek"`
	DayOfTheWeek string `json:"dayOfTheWeek"`
	DiaSemana    string `json:"dia_semana"`
	StartTime    string `json:"start_time"`
	StartTimeAlt string `json:"startTime"`
	HoraInicio   string `json:"hora_inicio"`
	EndTime      string `json:"end_time"`
	EndTimeAlt   string `json:"endTime"`
	HoraFim      string `json:"hora_fim"`
	Time         string `json:"time"`
	Hora         string `json:"hora"`
	Title        string `json:"title"`
	Titulo       string `json:"titulo"`
	Materia      string `json:"materia"`
	Description  string `json:"description"`
	Descricao    string `json:"descricao"`
	Color        string `json:"color"`
	Cor          string `json:"cor"`
}

func (e *InputEvent) UnmarshalJSON(data []byte) error {
	var w inputEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = InputEvent{
		ID:          w.ID,
		Date:        first(w.Date, w.Data),
		DateFormat:  w.DateFormat,
		DayOfWeek:   first(w.DayOfWeek, w.DayOfWeekAlt, w.DayOfTheWeek, w.DiaSemana),
		StartTime:   first(w.StartTime, w.StartTimeAlt, w.HoraInicio),
		EndTime:     first(w.EndTime, w.EndTimeAlt, w.HoraFim),
		Time:        first(w.Time, w.Hora),
		Title:       first(w.Title, w.Titulo, w.Materia),
		Description: first(w.Description, w.Descricao),
		Color:       first(w.Color, w.Cor),
	}
	return nil
}

// ResolvedEvent is an event projected onto exactly one calendar date.
type ResolvedEvent struct {
	ID    string `json:"id"`
	Day   int    `json:"day"`
	Month int    `json:"month"`
	Year  int    `json:"year"`
	// Date is the DD/MM/YYYY display form of Day/Month/Year.
	Date        string `json:"date"`
	Time        string `json:"time"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (r ResolvedEvent) On() Date {
	return Date{Year: r.Year, Month: r.Month, Day: r.Day}
}

func (r ResolvedEvent) Key() string {
	return r.On().Key()
}

// Unresolved records an input event the projector could not place.
type Unresolved struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
