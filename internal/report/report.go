package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/ledger"
)

// TimestampLayout metadata.last_updated format
const TimestampLayout = "2006-01-02 15:04:05"

// ChangePlaces decimal places of the change percentage
const ChangePlaces = 3

// Latest the most recent ingestion, keyed by asset id
type Latest struct {
	TargetDate    contracts.Date
	CurrentPrices map[string]float64             // asset id → reference price
	Predictions   map[string]map[string]*float64 // agent id → asset id → prediction
}

// Input everything a report is built from
type Input struct {
	GeneratedAt time.Time
	Assets      []contracts.Asset
	Stats       map[string]contracts.AgentStats
	Latest      Latest
	JudgedToday []contracts.ForecastRecord
}

// LatestFrom rebuilds the latest forecast from the records of the most recent issue date.
// Agents without a record for an asset get a nil prediction.
func LatestFrom(records []contracts.ForecastRecord, agents []string, assets []contracts.Asset) Latest {
	latest := Latest{
		CurrentPrices: map[string]float64{},
		Predictions:   map[string]map[string]*float64{},
	}

	var issue contracts.Date
	for _, r := range records {
		if r.IssueDate.After(issue) {
			issue = r.IssueDate
		}
	}
	if issue.IsZero() {
		return latest
	}

	for _, agent := range agents {
		preds := make(map[string]*float64, len(assets))
		for _, a := range assets {
			preds[a.ID] = nil
		}
		latest.Predictions[agent] = preds
	}

	for _, r := range records {
		if !r.IssueDate.Equal(issue) {
			continue
		}
		latest.TargetDate = r.TargetDate
		latest.CurrentPrices[r.AssetID] = r.ReferencePrice

		preds, ok := latest.Predictions[r.AgentID]
		if !ok {
			preds = map[string]*float64{}
			latest.Predictions[r.AgentID] = preds
		}
		p := r.PredictedPrice
		preds[r.AssetID] = &p
	}
	return latest
}

// Build assembles the per-run report document. Assets and predictions are keyed by display name.
func Build(in Input) contracts.Report {
	lf := contracts.LatestForecast{
		CurrentPrices: map[string]float64{},
		Predictions:   map[string]map[string]*float64{},
		Changes:       map[string]map[string]*float64{},
	}

	for _, a := range in.Assets {
		if p, ok := in.Latest.CurrentPrices[a.ID]; ok {
			lf.CurrentPrices[a.Name] = p
		}
	}

	for agent, preds := range in.Latest.Predictions {
		byName := make(map[string]*float64, len(in.Assets))
		changes := make(map[string]*float64, len(in.Assets))

		for _, a := range in.Assets {
			pred := preds[a.ID]
			byName[a.Name] = pred

			cur, ok := in.Latest.CurrentPrices[a.ID]
			if pred == nil || !ok || cur <= 0 {
				changes[a.Name] = nil
				continue
			}
			c := ChangePercent(cur, *pred)
			changes[a.Name] = &c
		}

		lf.Predictions[agent] = byName
		lf.Changes[agent] = changes
	}

	stats := in.Stats
	if stats == nil {
		stats = map[string]contracts.AgentStats{}
	}
	judged := in.JudgedToday
	if judged == nil {
		judged = []contracts.ForecastRecord{}
	}

	return contracts.Report{
		Metadata: contracts.ReportMetadata{
			LastUpdated: in.GeneratedAt.Format(TimestampLayout),
			TargetDate:  in.Latest.TargetDate,
		},
		OverallStats:   stats,
		LatestForecast: lf,
		JudgedToday:    judged,
	}
}

// ChangePercent (pred-cur)/cur*100 rounded to ChangePlaces
func ChangePercent(cur, pred float64) float64 {
	c := decimal.NewFromFloat(cur)
	pct, _ := decimal.NewFromFloat(pred).
		Sub(c).
		Mul(decimal.NewFromInt(100)).
		DivRound(c, ChangePlaces+2).
		Round(ChangePlaces).
		Float64()
	return pct
}

// Purge applies the ledger's settled purge to doc and reports the counts
func Purge(doc contracts.LedgerDocument, log zerolog.Logger) contracts.PurgeResult {
	l := ledger.Load(doc.Records, contracts.ModeStrict, log)
	removed, retained := l.PurgeSettled()
	return contracts.PurgeResult{
		Document: contracts.LedgerDocument{Records: l.Records()},
		Removed:  removed,
		Retained: retained,
	}
}

// Save writes the report as indented JSON
func Save(path string, rep contracts.Report) error {
	data, err := ledger.MarshalIndent(rep)
	if err != nil {
		return err
	}
	if err := ledger.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Load reads a report document
func Load(path string) (contracts.Report, error) {
	var rep contracts.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return rep, fmt.Errorf("read report %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		return rep, fmt.Errorf("decode report %s: %w", path, err)
	}
	return rep, nil
}
