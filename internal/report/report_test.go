package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pricebattle/internal/contracts"
)

var assets = []contracts.Asset{
	{ID: "usdjpy", Name: "USD/JPY", Symbol: "USDJPY=X", Decimals: 3},
	{ID: "spx", Name: "S&P 500", Symbol: "^GSPC", Decimals: 2},
}

func ptr(v float64) *float64 { return &v }

func sampleInput() Input {
	return Input{
		GeneratedAt: time.Date(2024, time.March, 4, 7, 0, 5, 0, time.UTC),
		Assets:      assets,
		Stats: map[string]contracts.AgentStats{
			"GPT-3.5": {WinRate: 66.7, AvgError: 3.35, Count: 3},
			"Gemini":  {},
		},
		Latest: Latest{
			TargetDate:    contracts.NewDate(2024, time.March, 11),
			CurrentPrices: map[string]float64{"usdjpy": 150.0, "spx": 5000},
			Predictions: map[string]map[string]*float64{
				"GPT-3.5": {"usdjpy": ptr(151.5), "spx": ptr(4990)},
				"Gemini":  {"usdjpy": nil, "spx": ptr(5012.5)},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	rep := Build(sampleInput())

	assert.Equal(t, "2024-03-04 07:00:05", rep.Metadata.LastUpdated)
	assert.Equal(t, contracts.NewDate(2024, time.March, 11), rep.Metadata.TargetDate)
	assert.Equal(t, 66.7, rep.OverallStats["GPT-3.5"].WinRate)
	assert.Equal(t, contracts.AgentStats{}, rep.OverallStats["Gemini"])

	lf := rep.LatestForecast
	assert.Equal(t, 150.0, lf.CurrentPrices["USD/JPY"])
	require.NotNil(t, lf.Predictions["GPT-3.5"]["USD/JPY"])
	assert.Equal(t, 151.5, *lf.Predictions["GPT-3.5"]["USD/JPY"])
	assert.Nil(t, lf.Predictions["Gemini"]["USD/JPY"])
	assert.Nil(t, lf.Changes["Gemini"]["USD/JPY"])

	assert.Equal(t, 1.0, *lf.Changes["GPT-3.5"]["USD/JPY"])
	assert.Equal(t, -0.2, *lf.Changes["GPT-3.5"]["S&P 500"])
	assert.Equal(t, 0.25, *lf.Changes["Gemini"]["S&P 500"])

	assert.NotNil(t, rep.JudgedToday)
}

func TestBuild_JSONShape(t *testing.T) {
	data, err := json.Marshal(Build(sampleInput()))
	require.NoError(t, err)

	var doc map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "2024-03-11", doc["metadata"]["target_date"])
	lf := doc["latest_forecast"]
	assert.Contains(t, lf, "current_prices")
	assert.Contains(t, lf, "GPT-3.5")
	assert.Contains(t, lf, "Gemini")

	gemini := lf["Gemini"].(map[string]interface{})
	v, ok := gemini["USD/JPY"]
	assert.True(t, ok, "unavailable prediction is an explicit null")
	assert.Nil(t, v)
}

func TestChangePercent(t *testing.T) {
	tests := []struct {
		cur, pred, want float64
	}{
		{150, 151.5, 1},
		{150.456, 151.234, 0.517},
		{5000, 4999.99, -0},
		{38000, 37500, -1.316},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ChangePercent(tt.cur, tt.pred), 1e-9, "cur=%v pred=%v", tt.cur, tt.pred)
	}
}

func TestPurge(t *testing.T) {
	issue := contracts.NewDate(2024, time.January, 1)
	pending := contracts.ForecastRecord{
		IssueDate: issue, TargetDate: issue.AddDays(7), AssetID: "spx", AgentID: "GPT-3.5",
		ReferencePrice: 100, PredictedPrice: 105, Status: contracts.StatusPending,
	}
	correct := true
	settled := pending
	settled.ActualPrice = ptr(103)
	settled.DirectionCorrect = &correct
	settled.ErrorRate = ptr(0.019417)
	settled.Status = contracts.StatusSettled

	res := Purge(contracts.LedgerDocument{Records: []contracts.ForecastRecord{settled, pending, settled}}, zerolog.Nop())

	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, 1, res.Retained)
	require.Len(t, res.Document.Records, 1)
	assert.True(t, res.Document.Records[0].IsPending())

	empty := Purge(contracts.LedgerDocument{}, zerolog.Nop())
	assert.Equal(t, 0, empty.Removed)
	assert.Equal(t, 0, empty.Retained)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_predictions.json")
	rep := Build(sampleInput())

	require.NoError(t, Save(path, rep))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"S&P 500"`, "no HTML escaping of &")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rep.Metadata, got.Metadata)
	assert.Equal(t, rep.LatestForecast.CurrentPrices, got.LatestForecast.CurrentPrices)
	assert.Equal(t, *rep.LatestForecast.Changes["Gemini"]["S&P 500"], *got.LatestForecast.Changes["Gemini"]["S&P 500"])
}

func TestLatestFrom(t *testing.T) {
	old := contracts.NewDate(2024, time.March, 1)
	cur := contracts.NewDate(2024, time.March, 4)
	rec := func(issue contracts.Date, asset, agent string, ref, pred float64) contracts.ForecastRecord {
		return contracts.ForecastRecord{
			IssueDate: issue, TargetDate: issue.AddDays(7), AssetID: asset, AgentID: agent,
			ReferencePrice: ref, PredictedPrice: pred, Status: contracts.StatusPending,
		}
	}

	records := []contracts.ForecastRecord{
		rec(old, "usdjpy", "GPT-3.5", 149, 150),
		rec(cur, "usdjpy", "GPT-3.5", 150, 151.5),
		rec(cur, "spx", "Gemini", 5000, 5012.5),
	}

	latest := LatestFrom(records, []string{"GPT-3.5", "Gemini"}, assets)

	assert.Equal(t, cur.AddDays(7), latest.TargetDate)
	assert.Equal(t, map[string]float64{"usdjpy": 150, "spx": 5000}, latest.CurrentPrices)
	require.NotNil(t, latest.Predictions["GPT-3.5"]["usdjpy"])
	assert.Equal(t, 151.5, *latest.Predictions["GPT-3.5"]["usdjpy"])
	assert.Nil(t, latest.Predictions["GPT-3.5"]["spx"])
	assert.Nil(t, latest.Predictions["Gemini"]["usdjpy"])
	assert.Equal(t, 5012.5, *latest.Predictions["Gemini"]["spx"])

	empty := LatestFrom(nil, []string{"GPT-3.5"}, assets)
	assert.True(t, empty.TargetDate.IsZero())
	assert.Empty(t, empty.Predictions)
}
