package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rights-monitor/backend/internal/storage/models"
)

func TestValidateDates(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr error
	}{
		{"keeps order and drops repeats", []string{"2024-03-02", "2024-03-01", " 2024-03-02"}, []string{"2024-03-02", "2024-03-01"}, nil},
		{"slashes", []string{"2024/03/01"}, nil, ErrInvalidDate},
		{"single digit month", []string{"2024-3-01"}, nil, ErrInvalidDate},
		{"impossible day", []string{"2024-02-30"}, nil, ErrInvalidDate},
		{"empty string", []string{""}, nil, ErrInvalidDate},
		{"nothing", nil, nil, ErrNoDates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDates(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandRange(t *testing.T) {
	days, err := ExpandRange("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, days)

	_, err = ExpandRange("2024-03-02", "2024-03-01")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ExpandRange("2020-01-01", "2024-01-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestRequestResolveDatesCombinesListAndRange(t *testing.T) {
	req := Request{
		Dates:     []string{"2024-03-05", "2024-03-01"},
		StartDate: "2024-03-01",
		EndDate:   "2024-03-02",
	}

	dates, err := req.ResolveDates()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-05", "2024-03-01", "2024-03-02"}, dates)
}

func TestRequestResolveRights(t *testing.T) {
	rights, err := Request{Rights: []string{" derecho a la vida", "derecho a la vida", "", "derecho a la salud"}}.ResolveRights()
	require.NoError(t, err)
	assert.Equal(t, []string{"derecho a la vida", "derecho a la salud"}, rights)
}

func TestAggregatorTotals(t *testing.T) {
	agg := NewAggregator([]string{"b", "a"})
	agg.Touch("2024-03-02")
	agg.Add("2024-03-01", []models.ClassificationResult{
		{Right: "a", Count: 1, Places: []string{"Zacatecoluca", "Apopa"}},
		{Right: "x", Count: 7, Places: []string{"Ilobasco"}},
	})
	agg.Add("2024-03-01", []models.ClassificationResult{
		{Right: "a", Count: 2, Places: []string{"Apopa", ""}},
	})

	assert.Equal(t, []DateResult{
		{Date: "2024-03-02", Counts: []models.ClassificationResult{
			{Right: "b", Count: 0, Places: []string{}},
			{Right: "a", Count: 0, Places: []string{}},
		}},
		{Date: "2024-03-01", Counts: []models.ClassificationResult{
			{Right: "b", Count: 0, Places: []string{}},
			{Right: "a", Count: 3, Places: []string{"Apopa", "Zacatecoluca"}},
		}},
	}, agg.Results())
}

func TestMergerRecovered(t *testing.T) {
	analysis := &models.Analysis{
		ID:      "a1",
		Content: `[{"derecho":"a","cantidad":1,"lugares":["Apopa"]},{"derecho":"b","cantidad":0,"lugares":null},{"derecho":"c","cantidad":2,"lugares":[]}]`,
	}

	got := Merger{}.Recovered(analysis, []string{"a", "b", "d"}, []models.Right{{ID: "r-d", Label: "d"}})

	assert.Equal(t, []models.ClassificationResult{
		{Right: "a", Count: 1, Places: []string{"Apopa"}},
		{Right: "b", Count: 0, Places: []string{}},
	}, got)

	assert.Equal(t, []models.ClassificationResult{}, Merger{}.Recovered(nil, []string{"a"}, nil))
	assert.Equal(t, []models.ClassificationResult{}, Merger{}.Recovered(&models.Analysis{Content: "no json"}, []string{"a"}, nil))
}
