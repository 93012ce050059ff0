package ics

import (
	"context"
	"errors"
	"fmt"

	"dyncal/internal/fetch"
	appLog "dyncal/internal/log"
)

// Source is one ICS subscription.
type Source struct {
	ID  string `yaml:"id" toml:"id" json:"id"`
	URL string `yaml:"url" toml:"url" json:"url"`
}

// FetchAll fetches and parses every source. A failing source is logged and
// contributes nothing; its error is joined into the returned error.
func FetchAll(ctx context.Context, f *fetch.Fetcher, sources []Source) ([]Event, error) {
	var (
		events []Event
		errs   []error
	)
	for _, src := range sources {
		res, err := f.Get(ctx, src.URL, nil)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", fetch.RedactURL(src.URL))
			errs = append(errs, fmt.Errorf("ics source %s: %w", src.ID, err))
			continue
		}
		parsed, err := Parse(src, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics source %s: %w", src.ID, err))
			continue
		}
		events = append(events, parsed...)
	}
	return events, errors.Join(errs...)
}
