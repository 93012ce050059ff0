package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"dyncal/internal/auth"
	"dyncal/internal/datefmt"
	"dyncal/internal/grid"
	"dyncal/internal/ics"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
	"dyncal/internal/project"
	"dyncal/internal/schedule"
	"dyncal/internal/study"
)

type monthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type gridResponse struct {
	Year       int                `json:"year"`
	Month      int                `json:"month"`
	MonthName  string             `json:"month_name"`
	Header     []string           `json:"header"`
	Weeks      [][]grid.Day       `json:"weeks"`
	Unresolved []model.Unresolved `json:"unresolved"`
	Prev       monthRef           `json:"prev"`
	Next       monthRef           `json:"next"`
}

func (s *Server) monthGrid(r *http.Request) gridResponse {
	today := s.today()
	q := r.URL.Query()
	year, month := grid.ShiftMonth(
		parseIntDefault(q.Get("year"), today.Year),
		parseIntDefault(q.Get("month"), today.Month),
		0,
	)
	res := s.projection()

	resp := gridResponse{
		Year:       year,
		Month:      month,
		MonthName:  datefmt.MonthName(month),
		Header:     grid.Header(),
		Weeks:      grid.Month(year, month, res.Events, today),
		Unresolved: res.Unresolved,
	}
	if resp.Unresolved == nil {
		resp.Unresolved = []model.Unresolved{}
	}
	resp.Prev.Year, resp.Prev.Month = grid.ShiftMonth(year, month, -1)
	resp.Next.Year, resp.Next.Month = grid.ShiftMonth(year, month, 1)
	return resp
}

// handleGrid returns the month grid with events attached.
//
// GET /api/grid?year=2025&month=2
//   - month is zero-based; out-of-range values carry into the year
//   - both default to today's month
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monthGrid(r))
}

type slotRow struct {
	Time  string                  `json:"time"`
	Cells [][]model.ResolvedEvent `json:"cells"`
}

type weekResponse struct {
	Label string     `json:"label"`
	Start string     `json:"start"`
	Prev  string     `json:"prev"`
	Next  string     `json:"next"`
	Days  []grid.Day `json:"days"`
	Slots []slotRow  `json:"slots"`
}

// handleWeek returns the Sunday-first week containing ?date=YYYY-MM-DD
// (default today) with events bucketed into hourly slots.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	anchor := s.today()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := datefmt.Parse(v, datefmt.ISO)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		anchor = d
	}

	res := s.projection()
	days := grid.WeekDays(anchor, res.Events, s.today())
	cells := make([]model.Cell, len(days))
	for i, d := range days {
		cells[i] = d.Cell
	}

	resp := weekResponse{
		Label: grid.WeekLabel(cells),
		Start: cells[0].Date().String(),
		Prev:  grid.ShiftWeek(anchor, -1).String(),
		Next:  grid.ShiftWeek(anchor, 1).String(),
		Days:  days,
	}
	for _, slot := range grid.TimeSlots() {
		row := slotRow{Time: slot, Cells: make([][]model.ResolvedEvent, len(days))}
		for i, d := range days {
			row.Cells[i] = grid.AtSlot(d.Events, slot)
			if row.Cells[i] == nil {
				row.Cells[i] = []model.ResolvedEvent{}
			}
		}
		resp.Slots = append(resp.Slots, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	res := s.projection()
	if res.Unresolved == nil {
		res.Unresolved = []model.Unresolved{}
	}
	writeJSON(w, http.StatusOK, struct {
		Events     []model.ResolvedEvent `json:"events"`
		Unresolved []model.Unresolved    `json:"unresolved"`
	}{res.Events, res.Unresolved})
}

type createEventRequest struct {
	Date        string `json:"date"` // DD/MM/YYYY
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}

// handleCreateEvent creates an event on the schedule API, or locally when
// no API is configured, and adds it to the store.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	on, err := datefmt.Parse(req.Date, datefmt.DMY)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be DD/MM/YYYY")
		return
	}
	ne := schedule.NewEvent{
		Date:        on,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}

	var created model.InputEvent
	if s.deps.Schedule != nil {
		created, err = s.deps.Schedule.Create(r.Context(), ne)
	} else {
		created, err = localEvent(ne)
	}
	switch {
	case errors.Is(err, schedule.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		appLog.Error("create event failed", err)
		writeUpstreamError(w, err)
		return
	}

	s.deps.Store.Add(created)
	s.Invalidate()

	resolved := project.Project([]model.InputEvent{created}, s.today(), project.Options{DateFormat: s.cfg.Layout()})
	if len(resolved.Events) != 1 {
		writeError(w, http.StatusInternalServerError, "created event could not be placed")
		return
	}
	writeJSON(w, http.StatusCreated, resolved.Events[0])
}

func localEvent(ne schedule.NewEvent) (model.InputEvent, error) {
	if err := ne.Validate(); err != nil {
		return model.InputEvent{}, err
	}
	return model.InputEvent{
		ID:          uuid.NewString(),
		Date:        datefmt.Format(ne.Date, datefmt.DMY),
		DateFormat:  string(datefmt.DMY),
		StartTime:   ne.StartTime,
		EndTime:     ne.EndTime,
		Title:       strings.TrimSpace(ne.Title),
		Description: ne.Description,
	}, nil
}

type credentialsRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
	Confirm  string `json:"confirmPassword"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "authentication not configured")
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.deps.Auth.Login(r.Context(), req.UserName, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, auth.ErrMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	default:
		appLog.Error("login failed", err)
		writeUpstreamError(w, err)
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "authentication not configured")
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.deps.Auth.CreateUser(r.Context(), req.UserName, req.Password, req.Confirm)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		appLog.Error("signup failed", err)
		writeUpstreamError(w, err)
	}
}

type studyRequest struct {
	Name   string          `json:"name"`
	Days   []study.DayPlan `json:"days"`
	Submit bool            `json:"submit"`
}

type studyResponse struct {
	Entries   []study.Entry         `json:"entries"`
	Events    []model.ResolvedEvent `json:"events"`
	Submitted bool                  `json:"submitted"`
}

// handleStudy runs the study wizard over a complete description, adds the
// resulting weekday events to the store and optionally submits the
// schedule to the API.
func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	var req studyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	wz := study.New(s.cfg.StudySubjects, nil)
	if err := wz.Run(req.Name, req.Days); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	submitted := false
	if req.Submit {
		if s.deps.API == nil {
			writeError(w, http.StatusServiceUnavailable, "schedule API not configured")
			return
		}
		if err := wz.Submit(r.Context(), s.deps.API); err != nil {
			appLog.Error("study submit failed", err)
			writeUpstreamError(w, err)
			return
		}
		submitted = true
	}

	inputs := wz.Entries()
	for _, ev := range inputs {
		s.deps.Store.Add(ev)
	}
	s.Invalidate()

	res := project.Project(inputs, s.today(), project.Options{})
	writeJSON(w, http.StatusOK, studyResponse{Entries: wz.Preview(), Events: res.Events, Submitted: submitted})
}

// handleICS exports the resolved events as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	res := s.projection()
	body := ics.Export(res.Events, s.location(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="dyncal.ics"`)
	_, _ = w.Write([]byte(body))
}
