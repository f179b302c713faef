package stats

import (
	"iter"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonny/pricebattle/internal/contracts"
)

var hundred = decimal.NewFromInt(100)

// Aggregator per-agent accuracy statistics
type Aggregator struct {
	agents []string
	log    zerolog.Logger
}

// NewAggregator creates an aggregator. Every agent in agents is always reported,
// with a zero-state when it has no settled records.
func NewAggregator(agents []string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		agents: agents,
		log:    log.With().Str("component", "stats.aggregator").Logger(),
	}
}

type accumulator struct {
	wins     int
	count    int
	errorSum decimal.Decimal
}

// Aggregate reduces settled records to win_rate / avg_error / count per agent.
// Sums are exact decimals so the result does not depend on iteration order.
func (a *Aggregator) Aggregate(settled iter.Seq[contracts.ForecastRecord]) map[string]contracts.AgentStats {
	acc := make(map[string]*accumulator, len(a.agents))
	for _, id := range a.agents {
		acc[id] = &accumulator{}
	}

	skipped := 0
	for rec := range settled {
		if !rec.IsSettled() || rec.DirectionCorrect == nil || rec.ErrorRate == nil {
			skipped++
			continue
		}
		g, ok := acc[rec.AgentID]
		if !ok {
			g = &accumulator{}
			acc[rec.AgentID] = g
		}
		g.count++
		if *rec.DirectionCorrect {
			g.wins++
		}
		g.errorSum = g.errorSum.Add(decimal.NewFromFloat(*rec.ErrorRate))
	}

	out := make(map[string]contracts.AgentStats, len(acc))
	for id, g := range acc {
		out[id] = g.stats()
	}

	if skipped > 0 {
		a.log.Warn().Int("skipped", skipped).Msg("incomplete settled records ignored")
	}
	a.log.Debug().Int("agents", len(out)).Msg("statistics aggregated")
	return out
}

func (g *accumulator) stats() contracts.AgentStats {
	if g.count == 0 {
		return contracts.AgentStats{}
	}
	n := decimal.NewFromInt(int64(g.count))

	winRate, _ := decimal.NewFromInt(int64(g.wins)).
		Mul(hundred).
		DivRound(n, 8).
		Round(1).
		Float64()
	avgError, _ := g.errorSum.
		Mul(hundred).
		DivRound(n, 8).
		Round(2).
		Float64()

	return contracts.AgentStats{
		WinRate:  winRate,
		AvgError: avgError,
		Count:    g.count,
	}
}

// AgentIDs sorted keys of a stats map
func AgentIDs(m map[string]contracts.AgentStats) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
