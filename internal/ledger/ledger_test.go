package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pricebattle/internal/contracts"
)

func newRecord(issue contracts.Date, asset, agent string) contracts.ForecastRecord {
	return contracts.ForecastRecord{
		IssueDate:      issue,
		TargetDate:     issue.AddDays(7),
		AssetID:        asset,
		AgentID:        agent,
		ReferencePrice: 100,
		PredictedPrice: 105,
		Status:         contracts.StatusPending,
	}
}

func settledCopy(rec contracts.ForecastRecord, actual float64, correct bool, errRate float64) contracts.ForecastRecord {
	rec.ActualPrice = &actual
	rec.DirectionCorrect = &correct
	rec.ErrorRate = &errRate
	rec.Status = contracts.StatusSettled
	return rec
}

func collect[T any](seq func(func(T) bool)) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func TestAppend_Validation(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	issue := contracts.NewDate(2024, time.January, 1)

	tests := []struct {
		name   string
		mutate func(*contracts.ForecastRecord)
		field  string
	}{
		{"target equals issue", func(r *contracts.ForecastRecord) { r.TargetDate = r.IssueDate }, "target_date"},
		{"target before issue", func(r *contracts.ForecastRecord) { r.TargetDate = r.IssueDate.AddDays(-1) }, "target_date"},
		{"zero reference", func(r *contracts.ForecastRecord) { r.ReferencePrice = 0 }, "reference_price"},
		{"negative predicted", func(r *contracts.ForecastRecord) { r.PredictedPrice = -1 }, "predicted_price"},
		{"empty asset", func(r *contracts.ForecastRecord) { r.AssetID = "" }, "asset_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord(issue, "usdjpy", "GPT-3.5")
			tt.mutate(&rec)

			_, err := l.Append(rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrValidation))

			var verr *contracts.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, 0, l.Len(), "rejected records must not be stored")
}

func TestAppend_ForcesPending(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	rec := settledCopy(newRecord(contracts.NewDate(2024, time.January, 1), "usdjpy", "GPT-3.5"), 103, true, 0.01)

	id, err := l.Append(rec)
	require.NoError(t, err)

	got, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, contracts.StatusPending, got.Status)
	assert.Nil(t, got.ActualPrice)
	assert.Nil(t, got.DirectionCorrect)
	assert.Nil(t, got.ErrorRate)
}

func TestPendingEligibleForSettlement(t *testing.T) {
	issue := contracts.NewDate(2024, time.January, 1) // target 2024-01-08
	target := issue.AddDays(7)

	tests := []struct {
		name string
		mode contracts.SettlementMode
		asOf contracts.Date
		want int
	}{
		{"strict before target", contracts.ModeStrict, target.AddDays(-1), 0},
		{"strict on target", contracts.ModeStrict, target, 0},
		{"strict after target", contracts.ModeStrict, target.AddDays(1), 1},
		{"lenient on target", contracts.ModeLenient, target, 1},
		{"lenient before target", contracts.ModeLenient, target.AddDays(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.mode, zerolog.Nop())
			_, err := l.Append(newRecord(issue, "usdjpy", "GPT-3.5"))
			require.NoError(t, err)

			got := collect(l.PendingEligibleForSettlement(tt.asOf))
			assert.Len(t, got, tt.want)
		})
	}
}

func TestPendingEligible_RestartableAndReflectsState(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	issue := contracts.NewDate(2024, time.January, 1)
	asOf := issue.AddDays(30)

	id1, _ := l.Append(newRecord(issue, "usdjpy", "GPT-3.5"))
	_, _ = l.Append(newRecord(issue, "usdjpy", "Gemini"))

	seq := l.PendingEligibleForSettlement(asOf)
	assert.Len(t, collect(seq), 2)
	assert.Len(t, collect(seq), 2, "sequence must be restartable")

	rec, _ := l.Get(id1)
	require.NoError(t, l.Claim(id1))
	require.NoError(t, l.Resolve(id1, settledCopy(rec, 103, true, 0.019417)))

	assert.Len(t, collect(seq), 1, "re-query must reflect settlement")
	assert.Len(t, collect(l.Settled()), 1)
}

func TestClaimResolve(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	rec := newRecord(contracts.NewDate(2024, time.January, 1), "usdjpy", "GPT-3.5")
	id, err := l.Append(rec)
	require.NoError(t, err)

	require.NoError(t, l.Claim(id))
	assert.ErrorIs(t, l.Claim(id), contracts.ErrRecordBusy)

	// Claimed records are hidden from the pending sequence
	assert.Empty(t, collect(l.PendingEligibleForSettlement(rec.TargetDate.AddDays(1))))

	outcome := settledCopy(rec, 103, true, 0.019417)
	outcome.PredictedPrice = 999 // immutable field, must be ignored
	require.NoError(t, l.Resolve(id, outcome))

	got, _ := l.Get(id)
	assert.Equal(t, contracts.StatusSettled, got.Status)
	assert.Equal(t, 105.0, got.PredictedPrice)
	require.NotNil(t, got.ActualPrice)
	assert.Equal(t, 103.0, *got.ActualPrice)

	// Monotonic: never re-settled
	assert.ErrorIs(t, l.Claim(id), contracts.ErrAlreadySettled)
	assert.ErrorIs(t, l.Resolve(id, settledCopy(rec, 50, false, 1)), contracts.ErrAlreadySettled)
	got, _ = l.Get(id)
	assert.Equal(t, 103.0, *got.ActualPrice)

	assert.ErrorIs(t, l.Claim(12345), contracts.ErrNotFound)
}

func TestResolve_RejectsNonSettledOutcome(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	rec := newRecord(contracts.NewDate(2024, time.January, 1), "usdjpy", "GPT-3.5")
	id, _ := l.Append(rec)
	require.NoError(t, l.Claim(id))

	assert.Error(t, l.Resolve(id, rec))

	got, _ := l.Get(id)
	assert.True(t, got.IsPending())
	assert.NoError(t, l.Claim(id), "failed resolve releases the claim")
}

func TestRelease(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	id, _ := l.Append(newRecord(contracts.NewDate(2024, time.January, 1), "usdjpy", "GPT-3.5"))

	require.NoError(t, l.Claim(id))
	l.Release(id)
	assert.NoError(t, l.Claim(id))
}

func TestConcurrentClaim_SingleWinner(t *testing.T) {
	l := New(contracts.ModeStrict, zerolog.Nop())
	id, _ := l.Append(newRecord(contracts.NewDate(2024, time.January, 1), "usdjpy", "GPT-3.5"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Claim(id) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestPurgeSettled(t *testing.T) {
	issue := contracts.NewDate(2024, time.January, 1)
	pending := newRecord(issue, "usdjpy", "GPT-3.5")
	settled := settledCopy(newRecord(issue, "n225", "Gemini"), 103, true, 0.01)

	l := Load([]contracts.ForecastRecord{settled, pending, settled}, contracts.ModeStrict, zerolog.Nop())
	require.Equal(t, 3, l.Len())

	removed, retained := l.PurgeSettled()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, retained)

	records := l.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "usdjpy", records[0].AssetID)
	assert.Empty(t, collect(l.Settled()))
}

func TestTargetingDate(t *testing.T) {
	issue := contracts.NewDate(2024, time.January, 1)
	l := New(contracts.ModeStrict, zerolog.Nop())
	_, _ = l.Append(newRecord(issue, "usdjpy", "GPT-3.5"))
	_, _ = l.Append(newRecord(issue.AddDays(1), "usdjpy", "GPT-3.5"))

	got := l.TargetingDate(issue.AddDays(7))
	require.Len(t, got, 1)
	assert.Equal(t, issue, got[0].IssueDate)
}
