package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateCarry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   Date
		want Date
	}{
		{Date{Year: 2025, Month: -1, Day: 31}, Date{Year: 2024, Month: 11, Day: 31}},
		{Date{Year: 2025, Month: 12, Day: 1}, Date{Year: 2026, Month: 0, Day: 1}},
		{Date{Year: 2025, Month: 1, Day: 29}, Date{Year: 2025, Month: 2, Day: 1}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestDateHelpers(t *testing.T) {
	t.Parallel()

	d := Date{Year: 2025, Month: 2, Day: 24}
	if d.Weekday() != time.Monday {
		t.Fatalf("2025-03-24 weekday = %s, want Monday", d.Weekday())
	}
	if got := d.AddDays(8).String(); got != "2025-04-01" {
		t.Fatalf("AddDays(8) = %s, want 2025-04-01", got)
	}
	if got := d.Key(); got != "2025-2-24" {
		t.Fatalf("Key() = %s, want 2025-2-24", got)
	}
	if got := DateOf(time.Date(2025, time.March, 24, 23, 59, 0, 0, time.UTC)); got != d {
		t.Fatalf("DateOf = %+v, want %+v", got, d)
	}
}

func TestInputEventAcceptsPortugueseFields(t *testing.T) {
	t.Parallel()

	raw := `{"dia_semana":"Quarta-feira","hora_inicio":"12:00","hora_fim":"13:30","titulo":"Almoço","descricao":"Milano","cor":"#0891b2"}`
	var ev InputEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.DayOfWeek != "Quarta-feira" || ev.Start() != "12:00" || ev.EndTime != "13:30" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Title != "Almoço" || ev.Description != "Milano" || ev.Color != "#0891b2" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Anchored() {
		t.Fatal("weekday-anchored event reported as date-anchored")
	}
}

func TestInputEventAcceptsAPIFields(t *testing.T) {
	t.Parallel()

	raw := `{"id":"a1","date":"03/26/2025","startTime":"09:00","endTime":"10:00","dayOfTheWeek":"Quarta-feira","title":"Standup"}`
	var ev InputEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.ID != "a1" || ev.Date != "03/26/2025" || ev.StartTime != "09:00" || ev.DayOfWeek != "Quarta-feira" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
