package datefmt

import (
	"testing"
	"time"

	"dyncal/internal/model"
)

func TestParseLayouts(t *testing.T) {
	t.Parallel()

	want := model.Date{Year: 2025, Month: 2, Day: 26}
	cases := []struct {
		in     string
		layout Layout
	}{
		{"26/03/2025", DMY},
		{"26/3/2025", DMY},
		{"03/26/2025", MDY},
		{"2025-03-26", ISO},
		{" 2025-3-26 ", ISO},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in, tc.layout)
		if err != nil {
			t.Fatalf("Parse(%q, %s) error: %v", tc.in, tc.layout, err)
		}
		if got != want {
			t.Fatalf("Parse(%q, %s) = %+v, want %+v", tc.in, tc.layout, got, want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		layout Layout
	}{
		{"31/02/2025", DMY},
		{"26/03/2025", MDY},
		{"2025-03-26", DMY},
		{"", ISO},
		{"2025-03-26", Layout("??")},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.in, tc.layout); err == nil {
			t.Fatalf("Parse(%q, %s) expected error", tc.in, tc.layout)
		}
	}
}

func TestFormatAndConvert(t *testing.T) {
	t.Parallel()

	d := model.Date{Year: 2025, Month: 0, Day: 5}
	if got := Format(d, DMY); got != "05/01/2025" {
		t.Fatalf("Format DMY = %s", got)
	}
	if got := Format(d, MDY); got != "01/05/2025" {
		t.Fatalf("Format MDY = %s", got)
	}
	got, err := Convert("03/26/2025", MDY, DMY)
	if err != nil || got != "26/03/2025" {
		t.Fatalf("Convert = %q, %v", got, err)
	}
}

func TestParseLayout(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Layout{"dmy": DMY, "MM/DD/YYYY": MDY, "iso": ISO} {
		got, err := ParseLayout(in)
		if err != nil || got != want {
			t.Fatalf("ParseLayout(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseLayout("auto"); err == nil {
		t.Fatal("ParseLayout(auto) expected error")
	}
}

func TestMatchWeekday(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Weekday
		ok   bool
	}{
		{"Quarta-feira", time.Wednesday, true},
		{"quarta", time.Wednesday, true},
		{"TERCA", time.Tuesday, true},
		{"Sábado", time.Saturday, true},
		{"sabado", time.Saturday, true},
		{"3", time.Wednesday, true},
		{"0", time.Sunday, true},
		{"Friday", time.Friday, true},
		{"7", time.Sunday, false},
		{"", time.Sunday, false},
		{"feriado", time.Sunday, false},
	}
	for _, tc := range cases {
		got, ok := MatchWeekday(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("MatchWeekday(%q) = %s, %v; want %s, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	if WeekdayName(time.Monday) != "Segunda-feira" || ShortWeekdayName(time.Monday) != "Segunda" {
		t.Fatal("unexpected Monday names")
	}
	if MonthName(2) != "Março" || MonthName(-1) != "Dezembro" || MonthName(12) != "Janeiro" {
		t.Fatal("unexpected month names")
	}
}

func TestClock(t *testing.T) {
	t.Parallel()

	if !ValidClock("09:30") || ValidClock("9:30") || ValidClock("25:00") {
		t.Fatal("ValidClock mismatch")
	}
	if h, ok := Hour("14:00"); !ok || h != 14 {
		t.Fatalf("Hour(14:00) = %d, %v", h, ok)
	}
}
