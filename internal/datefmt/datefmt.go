// Package datefmt converts between external date strings and model.Date.
//
// Every boundary that carries a date string must name its Layout
// explicitly; the separator alone never decides how a string is read.
package datefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"dyncal/internal/model"
)

// Layout tags a date string format.
type Layout string

const (
	// DMY is DD/MM/YYYY, used by event creation flows.
	DMY Layout = "DD/MM/YYYY"
	// MDY is MM/DD/YYYY, returned by GET /schedule.
	MDY Layout = "MM/DD/YYYY"
	// ISO is YYYY-MM-DD.
	ISO Layout = "YYYY-MM-DD"
)

type layoutPair struct {
	parse  string
	format string
}

var layouts = map[Layout]layoutPair{
	DMY: {parse: "2/1/2006", format: "02/01/2006"},
	MDY: {parse: "1/2/2006", format: "01/02/2006"},
	ISO: {parse: "2006-1-2", format: "2006-01-02"},
}

// ParseLayout accepts a layout tag or a short alias ("dmy", "mdy", "iso").
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dmy", "dd/mm/yyyy":
		return DMY, nil
	case "mdy", "mm/dd/yyyy":
		return MDY, nil
	case "iso", "yyyy-mm-dd":
		return ISO, nil
	}
	return "", fmt.Errorf("unknown date layout %q", name)
}

// Parse reads s under layout. Impossible dates such as 31/02/2025 are
// rejected.
func Parse(s string, layout Layout) (model.Date, error) {
	lp, ok := layouts[layout]
	if !ok {
		return model.Date{}, fmt.Errorf("unknown date layout %q", layout)
	}
	t, err := time.Parse(lp.parse, strings.TrimSpace(s))
	if err != nil {
		return model.Date{}, fmt.Errorf("parse %q as %s: %w", s, layout, err)
	}
	return model.DateOf(t), nil
}

// Format renders d under layout. Unknown layouts render as ISO.
func Format(d model.Date, layout Layout) string {
	lp, ok := layouts[layout]
	if !ok {
		lp = layouts[ISO]
	}
	return d.Time(time.UTC).Format(lp.format)
}

// Convert re-tags a date string from one layout to another.
func Convert(s string, from, to Layout) (string, error) {
	d, err := Parse(s, from)
	if err != nil {
		return "", err
	}
	return Format(d, to), nil
}

var weekdayNames = [7]string{
	"Domingo", "Segunda-feira", "Terça-feira", "Quarta-feira",
	"Quinta-feira", "Sexta-feira", "Sábado",
}

var shortWeekdayNames = [7]string{
	"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado",
}

var englishWeekdayNames = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// WeekdayName returns the full Portuguese weekday name ("Quarta-feira").
func WeekdayName(wd time.Weekday) string {
	return weekdayNames[int(wd)%7]
}

// ShortWeekdayName returns the week-view column header ("Quarta").
func ShortWeekdayName(wd time.Weekday) string {
	return shortWeekdayNames[int(wd)%7]
}

// MonthName returns the Portuguese name of a zero-based month, with carry.
func MonthName(month int) string {
	return monthNames[((month%12)+12)%12]
}

// MatchWeekday resolves a weekday token. Numeric tokens "0".."6" are taken
// as Sunday-first indexes; otherwise the folded token is matched as a
// substring of the Portuguese names, first match wins, then of the English
// names. Case and accents are ignored, so "terca" matches "Terça-feira".
func MatchWeekday(s string) (time.Weekday, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Sunday, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return time.Sunday, false
		}
		return time.Weekday(n), true
	}
	token := fold(s)
	for i, name := range weekdayNames {
		if strings.Contains(fold(name), token) {
			return time.Weekday(i), true
		}
	}
	for i, name := range englishWeekdayNames {
		if strings.Contains(name, token) {
			return time.Weekday(i), true
		}
	}
	return time.Sunday, false
}

// fold lowercases s and strips combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Lower(language.BrazilianPortuguese).String(out)
}

// ValidClock reports whether s is a 24-hour HH:MM string.
func ValidClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil && len(s) == 5
}

// Hour returns the hour component of an HH:MM string.
func Hour(s string) (int, bool) {
	h, _, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	return n, true
}
