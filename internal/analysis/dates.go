package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// maxRangeDays caps how many days a start/end range may expand to.
const maxRangeDays = 366

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrNoRights    = errors.New("no rights requested")
	ErrNoDates     = errors.New("no dates requested")
)

// Request names the dates and rights of one batch. Dates and the inclusive
// StartDate..EndDate range may be combined.
type Request struct {
	Dates     []string `json:"dates"`
	Rights    []string `json:"rights"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// ResolveDates validates every date of the request and returns them
// de-duplicated in request order, range days last.
func (r Request) ResolveDates() ([]string, error) {
	dates := append([]string{}, r.Dates...)

	if r.StartDate != "" || r.EndDate != "" {
		expanded, err := ExpandRange(r.StartDate, r.EndDate)
		if err != nil {
			return nil, err
		}
		dates = append(dates, expanded...)
	}

	return ValidateDates(dates)
}

// ResolveRights trims labels and drops blanks and repeats.
func (r Request) ResolveRights() ([]string, error) {
	seen := make(map[string]bool, len(r.Rights))
	rights := make([]string, 0, len(r.Rights))

	for _, label := range r.Rights {
		label = strings.TrimSpace(label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		rights = append(rights, label)
	}

	if len(rights) == 0 {
		return nil, ErrNoRights
	}
	return rights, nil
}

func ValidateDates(dates []string) ([]string, error) {
	seen := make(map[string]bool, len(dates))
	out := make([]string, 0, len(dates))

	for _, d := range dates {
		d = strings.TrimSpace(d)
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}

	if len(out) == 0 {
		return nil, ErrNoDates
	}
	return out, nil
}

// ExpandRange lists every day from start to end inclusive.
func ExpandRange(start, end string) ([]string, error) {
	from, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", ErrInvalidDate, start)
	}
	to, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", ErrInvalidDate, end)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidDate, end, start)
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(days) == maxRangeDays {
			return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidDate, maxRangeDays)
		}
		days = append(days, d.Format(DateLayout))
	}

	return days, nil
}
