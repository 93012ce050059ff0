package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dyncal/internal/auth"
	"dyncal/internal/config"
	"dyncal/internal/model"
	"dyncal/internal/remote"
	"dyncal/internal/schedule"
)

type memStore struct {
	mu     sync.Mutex
	events []model.InputEvent
}

func (m *memStore) Events() []model.InputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.InputEvent(nil), m.events...)
}

func (m *memStore) Add(ev model.InputEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

type fakeCreator struct {
	err error
}

func (f fakeCreator) Create(_ context.Context, ev schedule.NewEvent) (model.InputEvent, error) {
	if f.err != nil {
		return model.InputEvent{}, f.err
	}
	if err := ev.Validate(); err != nil {
		return model.InputEvent{}, err
	}
	return model.InputEvent{ID: "remote-1", Date: "26/03/2025", DateFormat: "dmy", StartTime: ev.StartTime, EndTime: ev.EndTime, Title: ev.Title}, nil
}

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, user, pass string) error {
	if user == "" {
		return auth.ErrMissingFields
	}
	if pass != "pw" {
		return auth.ErrUnauthorized
	}
	return nil
}

func (fakeAuth) CreateUser(_ context.Context, user, pass, confirm string) error {
	if pass != confirm {
		return auth.ErrPasswordMismatch
	}
	if user == "ana" {
		return auth.ErrUserExists
	}
	return nil
}

var fixedNow = time.Date(2025, 3, 24, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, deps Deps) (*Server, *memStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	cfg.Normalize()

	store := &memStore{events: []model.InputEvent{
		{ID: "r1", Date: "25/03/2025", StartTime: "09:00", EndTime: "10:00", Title: "Reunião"},
		{DayOfWeek: "Sexta", StartTime: "14:00", EndTime: "15:00", Title: "Estudo"},
		{DayOfWeek: "someday", Title: "Perdido"},
	}}
	deps.Store = store
	s := NewServer(cfg, deps)
	s.now = func() time.Time { return fixedNow }
	return s, store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGrid(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Deps{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/grid", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp gridResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Year != 2025 || resp.Month != 2 || resp.MonthName != "Março" {
		t.Fatalf("month = %d/%d %s", resp.Year, resp.Month, resp.MonthName)
	}
	if len(resp.Unresolved) != 1 || resp.Unresolved[0].Title != "Perdido" {
		t.Fatalf("unresolved = %+v", resp.Unresolved)
	}
	if resp.Prev != (monthRef{2025, 1}) || resp.Next != (monthRef{2025, 3}) {
		t.Fatalf("prev=%+v next=%+v", resp.Prev, resp.Next)
	}

	found := map[int]string{}
	for _, week := range resp.Weeks {
		for _, d := range week {
			if !d.InMonth {
				continue
			}
			if d.Today && d.Day != 24 {
				t.Errorf("today flag on %d", d.Day)
			}
			for _, ev := range d.Events {
				found[d.Day] = ev.Title
			}
		}
	}
	if found[25] != "Reunião" || found[28] != "Estudo" || len(found) != 2 {
		t.Fatalf("events by day = %v", found)
	}

	rec = do(t, s.Handler(), http.MethodGet, "/api/grid?year=2025&month=12", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Year != 2026 || resp.Month != 0 {
		t.Fatalf("carry: %d/%d", resp.Year, resp.Month)
	}
}

func TestWeek(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Deps{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/week?date=2025-03-24", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp weekResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Label != "23 - 29 de Março" || resp.Start != "2025-03-23" || len(resp.Days) != 7 {
		t.Fatalf("label=%q start=%q days=%d", resp.Label, resp.Start, len(resp.Days))
	}
	if len(resp.Slots) != 19 || resp.Slots[3].Time != "09:00" {
		t.Fatalf("slots = %d, [3]=%q", len(resp.Slots), resp.Slots[3].Time)
	}
	if cell := resp.Slots[3].Cells[2]; len(cell) != 1 || cell[0].Title != "Reunião" {
		t.Fatalf("09:00 tuesday = %+v", cell)
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/api/week?date=24/03/2025", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", rec.Code)
	}
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t, Deps{Schedule: fakeCreator{}})
	h := s.Handler()

	// Prime the cache so the create must invalidate it.
	do(t, h, http.MethodGet, "/api/events", "")

	rec := do(t, h, http.MethodPost, "/api/events", `{"date":"26/03/2025","startTime":"09:00","endTime":"10:00","title":"Consulta"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var created model.ResolvedEvent
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID != "remote-1" || created.Day != 26 || created.Month != 2 {
		t.Fatalf("created = %+v", created)
	}
	if len(store.Events()) != 4 {
		t.Fatal("event not added to the store")
	}

	rec = do(t, h, http.MethodGet, "/api/events", "")
	if !strings.Contains(rec.Body.String(), "Consulta") {
		t.Fatalf("cache not invalidated: %s", rec.Body)
	}

	cases := map[string]string{
		"bad json":  `{`,
		"bad date":  `{"date":"2025-03-26","startTime":"09:00","endTime":"10:00","title":"x"}`,
		"no title":  `{"date":"26/03/2025","startTime":"09:00","endTime":"10:00","title":""}`,
		"end first": `{"date":"26/03/2025","startTime":"10:00","endTime":"09:00","title":"x"}`,
	}
	for name, body := range cases {
		if rec := do(t, h, http.MethodPost, "/api/events", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestCreateEventLocalAndUpstreamError(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t, Deps{})
	rec := do(t, s.Handler(), http.MethodPost, "/api/events", `{"date":"27/03/2025","startTime":"08:00","endTime":"09:00","title":"Offline"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("local create status = %d: %s", rec.Code, rec.Body)
	}
	evs := store.Events()
	if last := evs[len(evs)-1]; last.ID == "" || last.Date != "27/03/2025" {
		t.Fatalf("local event = %+v", last)
	}

	s, _ = newTestServer(t, Deps{Schedule: fakeCreator{err: &remote.APIError{Status: 500, Message: "db down"}}})
	rec = do(t, s.Handler(), http.MethodPost, "/api/events", `{"date":"27/03/2025","startTime":"08:00","endTime":"09:00","title":"x"}`)
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "db down") {
		t.Fatalf("upstream error = %d %s", rec.Code, rec.Body)
	}
}

func TestAuthEndpoints(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Deps{Auth: fakeAuth{}})
	h := s.Handler()
	cases := []struct {
		path, body string
		want       int
	}{
		{"/api/auth/login", `{"userName":"bia","password":"pw"}`, http.StatusOK},
		{"/api/auth/login", `{"userName":"bia","password":"no"}`, http.StatusUnauthorized},
		{"/api/auth/login", `{"userName":"","password":"pw"}`, http.StatusBadRequest},
		{"/api/auth/signup", `{"userName":"bia","password":"a","confirmPassword":"a"}`, http.StatusCreated},
		{"/api/auth/signup", `{"userName":"ana","password":"a","confirmPassword":"a"}`, http.StatusConflict},
		{"/api/auth/signup", `{"userName":"bia","password":"a","confirmPassword":"b"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(t, h, http.MethodPost, tc.path, tc.body); rec.Code != tc.want {
			t.Errorf("%s %s: status = %d, want %d", tc.path, tc.body, rec.Code, tc.want)
		}
	}

	s, _ = newTestServer(t, Deps{})
	if rec := do(t, s.Handler(), http.MethodPost, "/api/auth/login", `{}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured auth status = %d", rec.Code)
	}
}

func TestStudy(t *testing.T) {
	t.Parallel()

	var submitted map[string]any
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&submitted)
		w.WriteHeader(http.StatusCreated)
	}))
	defer api.Close()
	client := remote.New(api.URL)
	client.HTTP = api.Client()

	s, store := newTestServer(t, Deps{API: client})
	rec := do(t, s.Handler(), http.MethodPost, "/api/study",
		`{"name":"ENEM","days":[{"weekday":1,"starts":["08:00","19:00"]},{"weekday":3,"starts":[]}],"submit":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp studyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 3 || !resp.Submitted {
		t.Fatalf("entries=%d submitted=%v", len(resp.Entries), resp.Submitted)
	}
	if e := resp.Entries[1]; e.Weekday != "Segunda-feira" || e.Start != "19:00" || e.End != "20:00" {
		t.Fatalf("second entry = %+v", e)
	}
	if resp.Entries[2].Start != "08:00" {
		t.Fatalf("wednesday keeps its seed slot: %+v", resp.Entries[2])
	}
	if len(resp.Events) != 3 || resp.Events[0].Day != 24 {
		t.Fatalf("events = %+v", resp.Events)
	}
	if submitted["nome"] != "ENEM" {
		t.Fatalf("submitted = %v", submitted)
	}
	if len(store.Events()) != 6 {
		t.Fatalf("store has %d events", len(store.Events()))
	}

	rec = do(t, s.Handler(), http.MethodPost, "/api/study", `{"name":"","days":[{"weekday":1}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name status = %d", rec.Code)
	}
}

func TestICSAndPage(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Deps{})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar.ics", "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "SUMMARY:Reunião") || !strings.Contains(rec.Body.String(), "DTSTART:20250325T090000Z") {
		t.Fatalf("ics body:\n%s", rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/calendar?year=2025&month=2", "")
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "Março 2025", "Reunião", "Perdido", "Fevereiro"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if rec := do(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusFound {
		t.Fatalf("root status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/preview.png", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing preview status = %d", rec.Code)
	}
}

func TestProjectionCache(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t, Deps{})
	first := s.projection()
	store.Add(model.InputEvent{Date: "30/03/2025", Title: "Novo"})
	if got := s.projection(); len(got.Events) != len(first.Events) {
		t.Fatal("projection recomputed inside TTL")
	}
	s.Invalidate()
	if got := s.projection(); len(got.Events) != len(first.Events)+1 {
		t.Fatal("Invalidate did not drop the cache")
	}
}

// invalidatingStore runs onRead while the server reads its events, the
// way a concurrent create lands between the read and the cache store.
type invalidatingStore struct {
	*memStore
	onRead func()
}

func (s invalidatingStore) Events() []model.InputEvent {
	evs := s.memStore.Events()
	if s.onRead != nil {
		s.onRead()
	}
	return evs
}

func TestProjectionNotCachedAcrossInvalidate(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t, Deps{})
	once := true
	s.deps.Store = invalidatingStore{memStore: store, onRead: func() {
		if once {
			once = false
			store.Add(model.InputEvent{Date: "30/03/2025", Title: "Concorrente"})
			s.Invalidate()
		}
	}}

	stale := s.projection()
	for _, ev := range stale.Events {
		if ev.Title == "Concorrente" {
			t.Fatal("first projection already saw the concurrent event")
		}
	}
	s.cacheMu.RLock()
	cached := s.cache
	s.cacheMu.RUnlock()
	if cached != nil {
		t.Fatal("projection read before Invalidate was cached")
	}

	fresh := s.projection()
	found := false
	for _, ev := range fresh.Events {
		found = found || ev.Title == "Concorrente"
	}
	if !found {
		t.Fatalf("fresh projection missing the event: %+v", fresh.Events)
	}
}

func TestBasicAuth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, Deps{})
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/events", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no creds status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with creds status = %d", rec.Code)
	}
}
