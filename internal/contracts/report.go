package contracts

import (
	"encoding/json"
	"fmt"
)

// LedgerDocument persisted ledger (ai_history.json)
type LedgerDocument struct {
	Records []ForecastRecord `json:"records"`
}

// ReportMetadata report header
type ReportMetadata struct {
	LastUpdated string `json:"last_updated"` // YYYY-MM-DD HH:MM:SS
	TargetDate  Date   `json:"target_date"`
}

// LatestForecast latest raw forecasts and reference prices.
// Encoded as {"current_prices": {...}, "<agent>": {"<asset>": price|null}, "changes": {...}}
type LatestForecast struct {
	CurrentPrices map[string]float64
	Predictions   map[string]map[string]*float64 // agent → asset name → prediction
	Changes       map[string]map[string]*float64 // agent → asset name → % change
}

// MarshalJSON inlines per-agent prediction maps next to current_prices
func (l LatestForecast) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(l.Predictions)+2)
	for agent, preds := range l.Predictions {
		out[agent] = preds
	}
	out["current_prices"] = nonNilPrices(l.CurrentPrices)
	if len(l.Changes) > 0 {
		out["changes"] = l.Changes
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON
func (l *LatestForecast) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.CurrentPrices = map[string]float64{}
	l.Predictions = map[string]map[string]*float64{}
	l.Changes = nil

	for key, value := range raw {
		switch key {
		case "current_prices":
			if err := json.Unmarshal(value, &l.CurrentPrices); err != nil {
				return fmt.Errorf("current_prices: %w", err)
			}
		case "changes":
			if err := json.Unmarshal(value, &l.Changes); err != nil {
				return fmt.Errorf("changes: %w", err)
			}
		default:
			var preds map[string]*float64
			if err := json.Unmarshal(value, &preds); err != nil {
				return fmt.Errorf("predictions for %s: %w", key, err)
			}
			l.Predictions[key] = preds
		}
	}
	return nil
}

func nonNilPrices(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

// Report per-run report document (ai_predictions.json)
type Report struct {
	Metadata       ReportMetadata        `json:"metadata"`
	OverallStats   map[string]AgentStats `json:"overall_stats"`
	LatestForecast LatestForecast        `json:"latest_forecast"`
	JudgedToday    []ForecastRecord      `json:"judged_today"`
}

// PurgeResult maintenance purge outcome
type PurgeResult struct {
	Document LedgerDocument `json:"document"`
	Removed  int            `json:"removed"`
	Retained int            `json:"retained"`
}
