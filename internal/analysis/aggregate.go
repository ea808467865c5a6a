package analysis

import (
	"sort"

	"github.com/rights-monitor/backend/internal/storage/models"
)

// DateResult is the per-right tally of one date.
type DateResult struct {
	Date   string                        `json:"fecha"`
	Counts []models.ClassificationResult `json:"conteo"`
}

type tally struct {
	count  int
	places map[string]struct{}
}

// Aggregator accumulates per-article results into per-date, per-right totals.
// It belongs to a single batch run.
type Aggregator struct {
	rights []string
	dates  []string
	byDate map[string]map[string]*tally
}

func NewAggregator(rights []string) *Aggregator {
	return &Aggregator{
		rights: rights,
		byDate: make(map[string]map[string]*tally),
	}
}

// Touch registers date so it is reported even if no article adds to it.
func (a *Aggregator) Touch(date string) {
	a.tallies(date)
}

func (a *Aggregator) tallies(date string) map[string]*tally {
	rights, ok := a.byDate[date]
	if ok {
		return rights
	}

	rights = make(map[string]*tally, len(a.rights))
	for _, label := range a.rights {
		rights[label] = &tally{places: make(map[string]struct{})}
	}
	a.byDate[date] = rights
	a.dates = append(a.dates, date)
	return rights
}

// Add sums counts and unions places. Results for rights outside the batch
// are ignored.
func (a *Aggregator) Add(date string, results []models.ClassificationResult) {
	rights := a.tallies(date)

	for _, r := range results {
		t, ok := rights[r.Right]
		if !ok {
			continue
		}
		t.count += r.Count
		for _, p := range r.Places {
			if p != "" {
				t.places[p] = struct{}{}
			}
		}
	}
}

// Results lists dates in the order they were first seen. Every date carries
// every requested right in request order with places sorted.
func (a *Aggregator) Results() []DateResult {
	out := make([]DateResult, 0, len(a.dates))

	for _, date := range a.dates {
		rights := a.byDate[date]
		counts := make([]models.ClassificationResult, 0, len(a.rights))

		for _, label := range a.rights {
			t := rights[label]
			places := make([]string, 0, len(t.places))
			for p := range t.places {
				places = append(places, p)
			}
			sort.Strings(places)

			counts = append(counts, models.ClassificationResult{
				Right:  label,
				Count:  t.count,
				Places: places,
			})
		}

		out = append(out, DateResult{Date: date, Counts: counts})
	}

	return out
}
