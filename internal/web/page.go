package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"dyncal/internal/datefmt"
	appLog "dyncal/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type calendarPage struct {
	Title string
	gridResponse
	PrevMonth string
	NextMonth string
}

// handleCalendarPage renders the month view server-side. The root element
// carries data-ready="true" once rendered, which the snapshot waits for.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	g := s.monthGrid(r)
	page := calendarPage{
		Title:        datefmt.MonthName(g.Month) + " " + strconv.Itoa(g.Year),
		gridResponse: g,
		PrevMonth:    datefmt.MonthName(g.Prev.Month),
		NextMonth:    datefmt.MonthName(g.Next.Month),
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "calendar.html", page); err != nil {
		appLog.Error("calendar page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
