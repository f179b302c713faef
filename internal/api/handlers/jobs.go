package handlers

import (
	"net/http"

	"github.com/wonny/pricebattle/internal/scheduler"
)

// JobStatsSource scheduler view
type JobStatsSource interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobsHandler exposes scheduler job statistics
type JobsHandler struct {
	source JobStatsSource
}

// NewJobsHandler creates a jobs handler
func NewJobsHandler(source JobStatsSource) *JobsHandler {
	return &JobsHandler{source: source}
}

// GetJobs
// GET /api/jobs
func (h *JobsHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.source.GetJobStats(),
	})
}
