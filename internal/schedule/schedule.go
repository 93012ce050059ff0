// Package schedule talks to the /schedule resource of the calendar API.
package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dyncal/internal/datefmt"
	"dyncal/internal/fetch"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
	"dyncal/internal/remote"
)

var ErrInvalidEvent = errors.New("invalid event")

// Record is one schedule entry as returned by GET /schedule. Date is
// MM/DD/YYYY.
type Record struct {
	MongoID      string          `json:"_id"`
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	StartTime    string          `json:"startTime"`
	EndTime      string          `json:"endTime"`
	DayOfTheWeek string          `json:"dayOfTheWeek"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	CreatedBy    json.RawMessage `json:"createdBy,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

// Input converts r to a date-anchored input event.
func (r Record) Input() model.InputEvent {
	id := r.MongoID
	if id == "" {
		id = r.ID
	}
	ev := model.InputEvent{
		ID:          id,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Date != "" {
		ev.Date = r.Date
		ev.DateFormat = string(datefmt.MDY)
	} else {
		ev.DayOfWeek = r.DayOfTheWeek
	}
	return ev
}

// NewEvent is the form submitted to create an event.
type NewEvent struct {
	Date        model.Date
	StartTime   string
	EndTime     string
	Title       string
	Description string
	CreatedBy   string
}

type createPayload struct {
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	DayOfTheWeek string `json:"dayOfTheWeek"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CreatedBy    string `json:"createdBy,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

// Client reads and writes schedule entries.
type Client struct {
	api     *remote.Client
	fetcher *fetch.Fetcher
	now     func() time.Time
}

func New(api *remote.Client, fetcher *fetch.Fetcher) *Client {
	if fetcher == nil {
		fetcher = fetch.New(api.HTTP, "")
	}
	return &Client{api: api, fetcher: fetcher, now: time.Now}
}

// Fetch returns the remote schedule as input events. On any failure it
// returns an empty, non-nil list together with the error.
func (c *Client) Fetch(ctx context.Context) ([]model.InputEvent, error) {
	res, err := c.fetcher.Get(ctx, c.api.URL("/schedule"), c.api.AuthHeader())
	if err != nil {
		appLog.Error("schedule fetch failed", err, "url", fetch.RedactURL(c.api.URL("/schedule")))
		return []model.InputEvent{}, fmt.Errorf("fetch schedule: %w", err)
	}

	records, err := decodeRecords(res.Body)
	if err != nil {
		appLog.Error("schedule decode failed", err)
		return []model.InputEvent{}, fmt.Errorf("decode schedule: %w", err)
	}

	out := make([]model.InputEvent, 0, len(records))
	for _, r := range records {
		out = append(out, r.Input())
	}
	appLog.Debug("schedule fetched", "records", len(out), "from_cache", res.FromCache)
	return out, nil
}

// decodeRecords accepts a bare array or an envelope with the list under
// "content" or "data".
func decodeRecords(body []byte) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var records []Record
	if body[0] == '[' {
		err := json.Unmarshal(body, &records)
		return records, err
	}
	var env struct {
		Content []Record `json:"content"`
		Data    []Record `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Content != nil {
		return env.Content, nil
	}
	return env.Data, nil
}

// Validate checks the required fields and the time range of ev.
func (ev NewEvent) Validate() error {
	switch {
	case strings.TrimSpace(ev.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	case ev.Date.Year == 0:
		return fmt.Errorf("%w: date is required", ErrInvalidEvent)
	case !datefmt.ValidClock(ev.StartTime):
		return fmt.Errorf("%w: start time %q is not HH:MM", ErrInvalidEvent, ev.StartTime)
	case !datefmt.ValidClock(ev.EndTime):
		return fmt.Errorf("%w: end time %q is not HH:MM", ErrInvalidEvent, ev.EndTime)
	case ev.EndTime <= ev.StartTime:
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidEvent)
	}
	return nil
}

// Create validates ev and posts it to /schedule. It returns the input event
// the caller can merge into its local list.
func (c *Client) Create(ctx context.Context, ev NewEvent) (model.InputEvent, error) {
	if err := ev.Validate(); err != nil {
		return model.InputEvent{}, err
	}
	on := ev.Date.Normalize()
	payload := createPayload{
		Date:         datefmt.Format(on, datefmt.DMY),
		StartTime:    ev.StartTime,
		EndTime:      ev.EndTime,
		DayOfTheWeek: datefmt.WeekdayName(on.Weekday()),
		Title:        strings.TrimSpace(ev.Title),
		Description:  ev.Description,
		CreatedBy:    ev.CreatedBy,
		CreatedAt:    c.now().UTC().Format(time.RFC3339),
	}

	var created Record
	if err := c.api.PostJSON(ctx, "/schedule", payload, &created); err != nil {
		return model.InputEvent{}, fmt.Errorf("create event: %w", err)
	}
	appLog.Info("schedule event created", "date", payload.Date, "title", payload.Title)

	id := created.MongoID
	if id == "" {
		id = created.ID
	}
	return model.InputEvent{
		ID:          id,
		Date:        payload.Date,
		DateFormat:  string(datefmt.DMY),
		StartTime:   payload.StartTime,
		EndTime:     payload.EndTime,
		Title:       payload.Title,
		Description: payload.Description,
	}, nil
}
