package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/report"
	"github.com/wonny/pricebattle/internal/stats"
	"github.com/wonny/pricebattle/pkg/logger"
)

// LedgerReader read side of the battle pipeline
type LedgerReader interface {
	Stats(ctx context.Context) (map[string]contracts.AgentStats, error)
	Records(ctx context.Context, status contracts.ForecastStatus) ([]contracts.ForecastRecord, error)
	Report(ctx context.Context, today contracts.Date, write bool) (contracts.Report, error)
}

// BattleHandler handles leaderboard API endpoints
// ⭐ SSOT: 읽기 전용, ledger 변경 없음
type BattleHandler struct {
	reader     LedgerReader
	reportPath string
	loc        *time.Location
	logger     *logger.Logger
}

// NewBattleHandler creates a new battle handler.
// reportPath is served when present; otherwise the report is rebuilt from the ledger.
func NewBattleHandler(reader LedgerReader, reportPath string, loc *time.Location, log *logger.Logger) *BattleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BattleHandler{
		reader:     reader,
		reportPath: reportPath,
		loc:        loc,
		logger:     log,
	}
}

type agentStatsResponse struct {
	AgentID string `json:"agent_id"`
	contracts.AgentStats
}

// GetStats per-agent leaderboard
// GET /api/stats
func (h *BattleHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.reader.Stats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to aggregate stats")
		respondError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	agents := make([]agentStatsResponse, 0, len(st))
	for _, id := range stats.AgentIDs(st) {
		agents = append(agents, agentStatsResponse{AgentID: id, AgentStats: st[id]})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
	})
}

// GetRecords ledger records, optionally filtered by status
// GET /api/records?status=pending|settled
func (h *BattleHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	status := contracts.ForecastStatus(r.URL.Query().Get("status"))
	switch status {
	case "", contracts.StatusPending, contracts.StatusSettled:
	default:
		respondError(w, http.StatusBadRequest, "status must be pending or settled")
		return
	}

	records, err := h.reader.Records(r.Context(), status)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load records")
		respondError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}
	if records == nil {
		records = []contracts.ForecastRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// GetReport latest report document
// GET /api/report
func (h *BattleHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.reportPath != "" {
		rep, err := report.Load(h.reportPath)
		if err == nil {
			respondJSON(w, http.StatusOK, rep)
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.WithError(err).WithFields(map[string]interface{}{
				"path": h.reportPath,
			}).Warn("Report file unreadable, rebuilding from ledger")
		}
	}

	rep, err := h.reader.Report(r.Context(), contracts.Today(h.loc), false)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build report")
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	respondJSON(w, http.StatusOK, rep)
}
