package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dyncal/internal/fetch"
	"dyncal/internal/model"
	"dyncal/internal/project"
	"dyncal/internal/remote"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	api := remote.New(srv.URL)
	api.HTTP = srv.Client()
	api.Token = func() string { return "tok" }
	c := New(api, fetch.New(srv.Client(), t.TempDir()))
	c.now = func() time.Time { return time.Date(2025, 3, 24, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchConvertsMDY(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`[
			{"_id":"a1","date":"03/25/2025","startTime":"09:00","endTime":"10:00","dayOfTheWeek":"Terça-feira","title":"Reunião","description":"","createdBy":{"username":"ana"}},
			{"id":"b2","date":"","startTime":"14:00","endTime":"15:00","dayOfTheWeek":"Sexta-feira","title":"Estudo"}
		]`))
	})

	got, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []model.InputEvent{
		{ID: "a1", Date: "03/25/2025", DateFormat: "MM/DD/YYYY", StartTime: "09:00", EndTime: "10:00", Title: "Reunião"},
		{ID: "b2", DayOfWeek: "Sexta-feira", StartTime: "14:00", EndTime: "15:00", Title: "Estudo"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Fetch mismatch (-want +got):\n%s", diff)
	}

	// The MDY tag lets the projector place the event on 25 March.
	res := project.Project(got, model.Date{Year: 2025, Month: 2, Day: 24}, project.Options{})
	if len(res.Events) != 2 {
		t.Fatalf("projected %d events, unresolved %+v", len(res.Events), res.Unresolved)
	}
	if d := res.Events[0].On(); d != (model.Date{Year: 2025, Month: 2, Day: 25}) {
		t.Fatalf("first event on %v", d)
	}
	if d := res.Events[1].On(); d != (model.Date{Year: 2025, Month: 2, Day: 28}) {
		t.Fatalf("second event on %v", d)
	}
}

func TestFetchFailureReturnsEmptyList(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	got, err := c.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil list", got)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	recs, err := decodeRecords([]byte(`{"content":[{"_id":"x","title":"T"}]}`))
	if err != nil || len(recs) != 1 || recs[0].MongoID != "x" {
		t.Fatalf("decodeRecords = %+v, %v", recs, err)
	}
	recs, err = decodeRecords(nil)
	if err != nil || len(recs) != 0 {
		t.Fatalf("empty body = %+v, %v", recs, err)
	}
}

func TestCreatePostsDMY(t *testing.T) {
	t.Parallel()

	var got createPayload
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/schedule" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"new1"}`))
	})

	ev, err := c.Create(context.Background(), NewEvent{
		Date:      model.Date{Year: 2025, Month: 2, Day: 26},
		StartTime: "09:00",
		EndTime:   "10:30",
		Title:     " Consulta médica ",
		CreatedBy: "u1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := createPayload{
		Date:         "26/03/2025",
		StartTime:    "09:00",
		EndTime:      "10:30",
		DayOfTheWeek: "Quarta-feira",
		Title:        "Consulta médica",
		CreatedBy:    "u1",
		CreatedAt:    "2025-03-24T12:00:00Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if ev.ID != "new1" || ev.Date != "26/03/2025" {
		t.Fatalf("returned event = %+v", ev)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for invalid event")
	})
	base := NewEvent{Date: model.Date{Year: 2025, Month: 2, Day: 26}, StartTime: "09:00", EndTime: "10:00", Title: "x"}

	cases := map[string]func(*NewEvent){
		"no title":      func(e *NewEvent) { e.Title = "  " },
		"no date":       func(e *NewEvent) { e.Date = model.Date{} },
		"bad start":     func(e *NewEvent) { e.StartTime = "9h" },
		"bad end":       func(e *NewEvent) { e.EndTime = "25:00" },
		"end not after": func(e *NewEvent) { e.EndTime = "09:00" },
	}
	for name, mutate := range cases {
		ev := base
		mutate(&ev)
		if _, err := c.Create(context.Background(), ev); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("%s: err = %v, want ErrInvalidEvent", name, err)
		}
	}
}
