// Package study builds a weekly study schedule in three steps: pick the
// weekdays, set the study slots per day, then review the subjects assigned
// to every slot and submit the result.
package study

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"dyncal/internal/datefmt"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
	"dyncal/internal/remote"
)

const (
	StepDays = iota + 1
	StepSlots
	StepReview
)

var (
	ErrNoName       = errors.New("schedule name is required")
	ErrNoDays       = errors.New("select at least one weekday")
	ErrMissingSlots = errors.New("every selected weekday needs at least one slot")
	ErrDayNotChosen = errors.New("weekday is not selected")
	ErrSlotIndex    = errors.New("slot index out of range")
	ErrLastSlot     = errors.New("a weekday keeps at least one slot")
	ErrWrongStep    = errors.New("action not available at this step")
)

// DefaultSubjects are assigned when no subject list is configured.
var DefaultSubjects = []string{
	"Matemática", "Português", "História", "Geografia", "Física", "Química", "Biologia",
}

var tips = map[int]string{
	StepDays:   "Selecione os dias da semana que você vai estudar.",
	StepSlots:  "Defina os horários de estudo para cada dia selecionado.",
	StepReview: "Confira a grade do cronograma de estudos.",
}

// Slot is one study period of a weekday.
type Slot struct {
	Start   string `json:"inicio"`
	End     string `json:"fim"`
	Subject string `json:"materia,omitempty"`
}

type DayConfig struct {
	Slots []Slot `json:"horariosEstudo"`
}

// Entry is one row of the reviewed schedule.
type Entry struct {
	Weekday string `json:"dia_semana"`
	Start   string `json:"hora_inicio"`
	End     string `json:"hora_fim"`
	Subject string `json:"materia"`
}

// DayPlan lists the slot start times of one weekday. An empty Starts keeps
// the seeded 08:00 slot.
type DayPlan struct {
	Weekday time.Weekday `json:"weekday"`
	Starts  []string     `json:"starts"`
}

// Chooser picks the subject for the next slot.
type Chooser func(subjects []string) string

// RandomChooser picks a subject uniformly at random.
func RandomChooser(subjects []string) string {
	if len(subjects) == 0 {
		return ""
	}
	return subjects[rand.IntN(len(subjects))]
}

// Wizard holds the state of one schedule being built. It is not safe for
// concurrent use.
type Wizard struct {
	step     int
	name     string
	days     []time.Weekday
	config   map[time.Weekday]*DayConfig
	entries  []Entry
	subjects []string
	choose   Chooser
}

// New starts a wizard at step 1. Empty subjects fall back to
// DefaultSubjects and a nil chooser to RandomChooser.
func New(subjects []string, choose Chooser) *Wizard {
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}
	if choose == nil {
		choose = RandomChooser
	}
	return &Wizard{
		step:     StepDays,
		config:   map[time.Weekday]*DayConfig{},
		subjects: slices.Clone(subjects),
		choose:   choose,
	}
}

func (w *Wizard) Step() int { return w.step }

// Tip is the hint shown for the current step.
func (w *Wizard) Tip() string { return tips[w.step] }

func (w *Wizard) Name() string { return w.name }

func (w *Wizard) SetName(name string) { w.name = name }

// Days returns the selected weekdays, Sunday first.
func (w *Wizard) Days() []time.Weekday { return slices.Clone(w.days) }

// ToggleDay selects wd with a single 08:00-09:00 slot, or deselects it and
// drops its slots.
func (w *Wizard) ToggleDay(wd time.Weekday) {
	if i := slices.Index(w.days, wd); i >= 0 {
		w.days = slices.Delete(w.days, i, i+1)
		delete(w.config, wd)
		return
	}
	w.days = append(w.days, wd)
	slices.Sort(w.days)
	w.config[wd] = &DayConfig{Slots: []Slot{{Start: "08:00", End: "09:00"}}}
}

// Slots returns a copy of the slots of wd.
func (w *Wizard) Slots(wd time.Weekday) []Slot {
	cfg, ok := w.config[wd]
	if !ok {
		return nil
	}
	return slices.Clone(cfg.Slots)
}

// AddSlot appends a one-hour slot starting at the hour the last slot ends.
func (w *Wizard) AddSlot(wd time.Weekday) error {
	cfg, ok := w.config[wd]
	if !ok {
		return ErrDayNotChosen
	}
	h := 8
	if n := len(cfg.Slots); n > 0 {
		if end, ok := datefmt.Hour(cfg.Slots[n-1].End); ok {
			h = end
		}
	}
	cfg.Slots = append(cfg.Slots, Slot{Start: clock(h), End: clock(h + 1)})
	return nil
}

// RemoveSlot drops slot i of wd unless it is the only one.
func (w *Wizard) RemoveSlot(wd time.Weekday, i int) error {
	cfg, ok := w.config[wd]
	if !ok {
		return ErrDayNotChosen
	}
	if i < 0 || i >= len(cfg.Slots) {
		return ErrSlotIndex
	}
	if len(cfg.Slots) <= 1 {
		return ErrLastSlot
	}
	cfg.Slots = slices.Delete(cfg.Slots, i, i+1)
	return nil
}

// SetStart moves slot i of wd to start and resets its end to one hour
// later.
func (w *Wizard) SetStart(wd time.Weekday, i int, start string) error {
	cfg, ok := w.config[wd]
	if !ok {
		return ErrDayNotChosen
	}
	if i < 0 || i >= len(cfg.Slots) {
		return ErrSlotIndex
	}
	if !datefmt.ValidClock(start) {
		return fmt.Errorf("invalid start time %q", start)
	}
	h, _ := datefmt.Hour(start)
	cfg.Slots[i] = Slot{Start: start, End: clock(h + 1)}
	return nil
}

// Next validates the current step and advances. Leaving step 2 assigns a
// subject to every slot and builds the review entries.
func (w *Wizard) Next() error {
	switch w.step {
	case StepDays:
		if len(w.days) == 0 {
			return ErrNoDays
		}
		if strings.TrimSpace(w.name) == "" {
			return ErrNoName
		}
		w.step = StepSlots
	case StepSlots:
		for _, wd := range w.days {
			if cfg := w.config[wd]; cfg == nil || len(cfg.Slots) == 0 {
				return fmt.Errorf("%w: %s", ErrMissingSlots, datefmt.WeekdayName(wd))
			}
		}
		w.assignSubjects()
		w.step = StepReview
	default:
		return ErrWrongStep
	}
	return nil
}

// Back returns to the previous step; it stays on step 1.
func (w *Wizard) Back() {
	if w.step > StepDays {
		w.step--
	}
}

func (w *Wizard) assignSubjects() {
	w.entries = w.entries[:0]
	for _, wd := range w.days {
		cfg := w.config[wd]
		for i := range cfg.Slots {
			cfg.Slots[i].Subject = w.choose(w.subjects)
			w.entries = append(w.entries, Entry{
				Weekday: datefmt.WeekdayName(wd),
				Start:   cfg.Slots[i].Start,
				End:     cfg.Slots[i].End,
				Subject: cfg.Slots[i].Subject,
			})
		}
	}
}

// Run drives the wizard through steps 1 and 2 from a complete plan and
// leaves it at the review step.
func (w *Wizard) Run(name string, days []DayPlan) error {
	if w.step != StepDays {
		return ErrWrongStep
	}
	w.SetName(name)
	for _, d := range days {
		if d.Weekday < time.Sunday || d.Weekday > time.Saturday {
			return fmt.Errorf("weekday %d out of range", d.Weekday)
		}
		if !slices.Contains(w.days, d.Weekday) {
			w.ToggleDay(d.Weekday)
		}
	}
	if err := w.Next(); err != nil {
		return err
	}
	for _, d := range days {
		for i, start := range d.Starts {
			if i > 0 {
				if err := w.AddSlot(d.Weekday); err != nil {
					return err
				}
			}
			if err := w.SetStart(d.Weekday, i, start); err != nil {
				return err
			}
		}
	}
	return w.Next()
}

// Preview returns the reviewed schedule rows, ordered by weekday then slot.
func (w *Wizard) Preview() []Entry {
	return slices.Clone(w.entries)
}

// Entries converts the reviewed schedule into weekday-anchored events.
func (w *Wizard) Entries() []model.InputEvent {
	out := make([]model.InputEvent, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, model.InputEvent{
			DayOfWeek: e.Weekday,
			StartTime: e.Start,
			EndTime:   e.End,
			Title:     e.Subject,
		})
	}
	return out
}

type submitPayload struct {
	Name     string             `json:"nome"`
	Days     []int              `json:"dias_semana"`
	Config   map[int]*DayConfig `json:"configuracao_dias"`
	Calendar []Entry            `json:"calendario"`
}

// Submit posts the reviewed schedule to /cronogramas.
func (w *Wizard) Submit(ctx context.Context, api *remote.Client) error {
	if w.step != StepReview {
		return ErrWrongStep
	}
	payload := submitPayload{
		Name:     strings.TrimSpace(w.name),
		Days:     make([]int, 0, len(w.days)),
		Config:   make(map[int]*DayConfig, len(w.config)),
		Calendar: w.Preview(),
	}
	for _, wd := range w.days {
		payload.Days = append(payload.Days, int(wd))
		payload.Config[int(wd)] = w.config[wd]
	}
	if err := api.PostJSON(ctx, "/cronogramas", payload, nil); err != nil {
		return fmt.Errorf("submit study schedule: %w", err)
	}
	appLog.Info("study schedule submitted", "name", payload.Name, "entries", len(payload.Calendar))
	return nil
}

func clock(h int) string {
	return fmt.Sprintf("%02d:00", ((h%24)+24)%24)
}
