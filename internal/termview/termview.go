// Package termview renders the month and week views for the terminal.
package termview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dyncal/internal/datefmt"
	"dyncal/internal/grid"
	"dyncal/internal/model"
	"dyncal/internal/study"
)

const cellWidth = 5

type Styles struct {
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Today   lipgloss.Style
	Weekend lipgloss.Style
	Header  lipgloss.Style
	Title   lipgloss.Style
	Event   lipgloss.Style
	Warning lipgloss.Style
	Border  lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Today: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("99")).
			Bold(true),
		Weekend: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true),
		Title: lipgloss.NewStyle().
			Bold(true).
			Underline(true),
		Event: lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}

// Month renders a month grid followed by its event agenda. Days with
// events carry a trailing marker.
func Month(year, month int, weeks [][]grid.Day, st Styles) string {
	var b strings.Builder
	title := fmt.Sprintf("%s %d", datefmt.MonthName(month), year)
	b.WriteString(lipgloss.PlaceHorizontal(cellWidth*grid.DaysPerWeek, lipgloss.Center, st.Title.Render(title)))
	b.WriteByte('\n')

	cols := make([]string, 0, grid.DaysPerWeek)
	for _, h := range grid.Header() {
		abbr := string([]rune(h)[:3])
		cols = append(cols, st.Header.Width(cellWidth).Align(lipgloss.Right).Render(abbr))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteByte('\n')

	var agenda []model.ResolvedEvent
	for _, week := range weeks {
		cols = cols[:0]
		for i, d := range week {
			cols = append(cols, dayCell(d, i, st))
			if d.InMonth {
				agenda = append(agenda, d.Events...)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
		b.WriteByte('\n')
	}

	if len(agenda) > 0 {
		b.WriteByte('\n')
		for _, ev := range agenda {
			b.WriteString(eventLine(ev, true, st))
			b.WriteByte('\n')
		}
	}
	return st.Border.Render(strings.TrimRight(b.String(), "\n"))
}

func dayCell(d grid.Day, col int, st Styles) string {
	label := strconv.Itoa(d.Day)
	if len(d.Events) > 0 {
		label += "•"
	} else {
		label += " "
	}
	style := st.Normal
	switch {
	case d.Today:
		style = st.Today
	case !d.InMonth:
		style = st.Muted
	case col == 0 || col == grid.DaysPerWeek-1:
		style = st.Weekend
	}
	return lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Right).Render(style.Render(label))
}

// Week renders one line per day of a Sunday-first week, each followed by
// its events in start order.
func Week(days []grid.Day, st Styles) string {
	cells := make([]model.Cell, len(days))
	for i, d := range days {
		cells[i] = d.Cell
	}

	var b strings.Builder
	b.WriteString(st.Title.Render(grid.WeekLabel(cells)))
	b.WriteByte('\n')
	for _, d := range days {
		head := fmt.Sprintf("%-14s %02d/%02d", datefmt.WeekdayName(d.Date().Weekday()), d.Day, d.Month+1)
		if d.Today {
			b.WriteString(st.Today.Render(head))
		} else {
			b.WriteString(st.Header.Render(head))
		}
		b.WriteByte('\n')
		if len(d.Events) == 0 {
			b.WriteString(st.Muted.Render("  -"))
			b.WriteByte('\n')
			continue
		}
		for _, ev := range d.Events {
			b.WriteString("  " + eventLine(ev, false, st))
			b.WriteByte('\n')
		}
	}
	return st.Border.Render(strings.TrimRight(b.String(), "\n"))
}

// Unresolved lists the events that could not be placed on a date.
func Unresolved(list []model.Unresolved, st Styles) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(st.Warning.Render(fmt.Sprintf("%d evento(s) sem data:", len(list))))
	for _, u := range list {
		b.WriteString("\n  " + st.Muted.Render(fmt.Sprintf("%s (%s)", u.Title, u.Reason)))
	}
	return b.String()
}

func eventLine(ev model.ResolvedEvent, withDate bool, st Styles) string {
	var parts []string
	if withDate {
		parts = append(parts, fmt.Sprintf("%02d/%02d", ev.Day, ev.Month+1))
	}
	if ev.StartTime != "" {
		span := ev.StartTime
		if ev.EndTime != "" {
			span += "-" + ev.EndTime
		}
		parts = append(parts, span)
	}
	marker := lipgloss.NewStyle().Foreground(lipgloss.Color(ev.Color)).Render("■")
	parts = append(parts, marker, st.Event.Render(ev.Title))
	return strings.Join(parts, " ")
}

// StudyTable renders the reviewed study schedule.
func StudyTable(entries []study.Entry, st Styles) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Weekday, e.Start, e.End, e.Subject})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.Muted).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Header.Padding(0, 1)
			}
			return st.Normal.Padding(0, 1)
		}).
		Headers("Dia", "Início", "Fim", "Matéria").
		Rows(rows...).
		String()
}
