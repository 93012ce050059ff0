package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dyncal/internal/model"
)

func resolved(id string, day, month, year int, at string) model.ResolvedEvent {
	return model.ResolvedEvent{ID: id, Day: day, Month: month, Year: year, Time: at, Title: id}
}

func TestAttach(t *testing.T) {
	t.Parallel()

	events := []model.ResolvedEvent{
		resolved("a", 24, 2, 2025, "09:00"),
		resolved("b", 26, 2, 2025, "12:00"),
		resolved("c", 24, 2, 2025, "14:00"),
		resolved("other-year", 24, 2, 2024, "09:00"),
	}
	cells := Flatten(Build(2025, 2))
	attached := Attach(cells, events)
	if len(attached) != len(cells) {
		t.Fatalf("Attach returned %d slots for %d cells", len(attached), len(cells))
	}

	total := 0
	for i, c := range cells {
		total += len(attached[i])
		if attached[i] == nil {
			t.Fatalf("cell %+v has nil events", c)
		}
		if c == (model.Cell{Day: 24, Month: 2, Year: 2025}) {
			got := []string{attached[i][0].ID, attached[i][1].ID}
			if diff := cmp.Diff([]string{"a", "c"}, got); diff != "" {
				t.Fatalf("order within cell changed (-want +got):\n%s", diff)
			}
		}
	}
	if total != 3 {
		t.Fatalf("attached %d events, want 3", total)
	}
}

func TestMonthMarksPaddingAndToday(t *testing.T) {
	t.Parallel()

	today := model.Date{Year: 2025, Month: 1, Day: 11}
	days := Month(2025, 1, []model.ResolvedEvent{resolved("bday", 11, 1, 2025, "18:00")}, today)

	first := days[0][0]
	if first.InMonth || first.Day != 26 || first.Month != 0 {
		t.Fatalf("first day = %+v, want padding Jan 26", first)
	}
	last := days[len(days)-1][6]
	if last.InMonth || last.Day != 1 || last.Month != 2 {
		t.Fatalf("last day = %+v, want padding Mar 1", last)
	}
	found := false
	for _, week := range days {
		for _, d := range week {
			if d.Today {
				found = true
				if d.Day != 11 || len(d.Events) != 1 || d.Events[0].ID != "bday" {
					t.Fatalf("today cell = %+v", d)
				}
			}
		}
	}
	if !found {
		t.Fatal("today not marked")
	}
}

func TestWeekDaysAndSlots(t *testing.T) {
	t.Parallel()

	events := []model.ResolvedEvent{
		resolved("standup", 24, 2, 2025, "09:00"),
		resolved("lunch", 26, 2, 2025, "12:30"),
	}
	days := WeekDays(model.Date{Year: 2025, Month: 2, Day: 25}, events, model.Date{Year: 2025, Month: 2, Day: 24})
	if len(days) != 7 || !days[1].Today || len(days[1].Events) != 1 {
		t.Fatalf("unexpected week: %+v", days)
	}

	slots := TimeSlots()
	if slots[0] != "06:00" || slots[len(slots)-1] != "24:00" || len(slots) != 19 {
		t.Fatalf("TimeSlots = %v", slots)
	}
	if got := AtSlot(days[3].Events, "12:00"); len(got) != 1 || got[0].ID != "lunch" {
		t.Fatalf("AtSlot(12:00) = %+v", got)
	}
	if got := AtSlot(days[3].Events, "13:00"); len(got) != 0 {
		t.Fatalf("AtSlot(13:00) = %+v", got)
	}
}

func TestHeader(t *testing.T) {
	t.Parallel()

	want := []string{"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}
	if diff := cmp.Diff(want, Header()); diff != "" {
		t.Fatalf("Header mismatch (-want +got):\n%s", diff)
	}
}
