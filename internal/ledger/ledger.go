package ledger

import (
	"fmt"
	"iter"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wonny/pricebattle/internal/contracts"
)

// Entry a record with its in-memory identity
type Entry struct {
	ID     uint64
	Record contracts.ForecastRecord
}

type entry struct {
	id      uint64
	rec     contracts.ForecastRecord
	claimed bool
}

// Ledger append-only collection of forecast records
// ⭐ SSOT: pending → settled 전이는 Claim/Resolve 로만 수행
type Ledger struct {
	mu      sync.Mutex
	entries []*entry
	byID    map[uint64]*entry
	nextID  uint64
	mode    contracts.SettlementMode
	log     zerolog.Logger
}

// New creates an empty ledger
func New(mode contracts.SettlementMode, log zerolog.Logger) *Ledger {
	if mode == "" {
		mode = contracts.ModeStrict
	}
	return &Ledger{
		byID: make(map[uint64]*entry),
		mode: mode,
		log:  log.With().Str("component", "ledger").Logger(),
	}
}

// Load creates a ledger from persisted records, keeping their order.
// Persisted records are kept even when inconsistent so that nothing is lost.
func Load(records []contracts.ForecastRecord, mode contracts.SettlementMode, log zerolog.Logger) *Ledger {
	l := New(mode, log)
	for _, rec := range records {
		if !rec.Consistent() {
			l.log.Warn().
				Str("asset_id", rec.AssetID).
				Str("agent_id", rec.AgentID).
				Str("issue_date", rec.IssueDate.String()).
				Str("status", string(rec.Status)).
				Msg("inconsistent record loaded")
		}
		l.insert(rec)
	}
	l.log.Debug().Int("records", len(records)).Msg("ledger loaded")
	return l
}

func (l *Ledger) insert(rec contracts.ForecastRecord) uint64 {
	l.nextID++
	e := &entry{id: l.nextID, rec: rec}
	l.entries = append(l.entries, e)
	l.byID[e.id] = e
	return e.id
}

// Append adds a new pending record
func (l *Ledger) Append(rec contracts.ForecastRecord) (uint64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	rec.Status = contracts.StatusPending
	rec.ActualPrice = nil
	rec.DirectionCorrect = nil
	rec.ErrorRate = nil

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insert(rec), nil
}

// PendingEligibleForSettlement lazily yields pending, unclaimed records whose
// target date is eligible as of asOf. Each iteration reflects current state.
func (l *Ledger) PendingEligibleForSettlement(asOf contracts.Date) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range l.snapshot() {
			l.mu.Lock()
			rec, claimed := e.rec, e.claimed
			l.mu.Unlock()

			if claimed || !rec.IsPending() || !l.mode.Eligible(rec.TargetDate, asOf) {
				continue
			}
			if !yield(Entry{ID: e.id, Record: rec}) {
				return
			}
		}
	}
}

// Settled lazily yields all settled records
func (l *Ledger) Settled() iter.Seq[contracts.ForecastRecord] {
	return func(yield func(contracts.ForecastRecord) bool) {
		for _, e := range l.snapshot() {
			l.mu.Lock()
			rec := e.rec
			l.mu.Unlock()

			if !rec.IsSettled() {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// snapshot copies the entry list so iteration does not hold the lock
func (l *Ledger) snapshot() []*entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Claim reserves a pending record for settlement
func (l *Ledger) Claim(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("claim %d: %w", id, contracts.ErrNotFound)
	}
	if e.rec.IsSettled() {
		return fmt.Errorf("claim %d: %w", id, contracts.ErrAlreadySettled)
	}
	if e.claimed {
		return fmt.Errorf("claim %d: %w", id, contracts.ErrRecordBusy)
	}
	e.claimed = true
	return nil
}

// Release drops a claim without settling
func (l *Ledger) Release(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.byID[id]; ok {
		e.claimed = false
	}
}

// Resolve commits the outcome of a claimed record and releases the claim.
// Only the outcome fields are taken from settled; the rest of the record is immutable.
func (l *Ledger) Resolve(id uint64, settled contracts.ForecastRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("resolve %d: %w", id, contracts.ErrNotFound)
	}
	defer func() { e.claimed = false }()

	if e.rec.IsSettled() {
		return fmt.Errorf("resolve %d: %w", id, contracts.ErrAlreadySettled)
	}
	if !settled.IsSettled() || !settled.Consistent() {
		return fmt.Errorf("resolve %d: outcome is not a settled record", id)
	}

	e.rec.ActualPrice = settled.ActualPrice
	e.rec.DirectionCorrect = settled.DirectionCorrect
	e.rec.ErrorRate = settled.ErrorRate
	e.rec.Status = contracts.StatusSettled
	return nil
}

// PurgeSettled removes every settled record, keeping pending ones
func (l *Ledger) PurgeSettled() (removed, retained int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.rec.IsSettled() {
			delete(l.byID, e.id)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = nil
	}
	l.entries = kept

	l.log.Info().Int("removed", removed).Int("retained", len(kept)).Msg("settled records purged")
	return removed, len(kept)
}

// Get returns a copy of the record with the given id
func (l *Ledger) Get(id uint64) (contracts.ForecastRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		return contracts.ForecastRecord{}, false
	}
	return e.rec, true
}

// Records returns every record in insertion order
func (l *Ledger) Records() []contracts.ForecastRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]contracts.ForecastRecord, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.rec)
	}
	return out
}

// TargetingDate records maturing on d, in any status
func (l *Ledger) TargetingDate(d contracts.Date) []contracts.ForecastRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []contracts.ForecastRecord
	for _, e := range l.entries {
		if e.rec.TargetDate.Equal(d) {
			out = append(out, e.rec)
		}
	}
	return out
}

// Len number of records
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Mode configured settlement eligibility
func (l *Ledger) Mode() contracts.SettlementMode {
	return l.mode
}
