package api

import (
	"context"
	"net/http"

	"github.com/okian/listeval/internal/domain/aggregate"
	"github.com/okian/listeval/pkg/logger"
)

// ReportDependencies produces the aggregated results report.
type ReportDependencies interface {
	StatsProvider
	Report(ctx context.Context) (aggregate.Report, error)
}

// ReportHandler serves the aggregated results.
type ReportHandler struct {
	deps   ReportDependencies
	logger logger.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies, log logger.Logger) *ReportHandler {
	return &ReportHandler{deps: deps, logger: log}
}

// HandleHTML handles GET /report requests.
func (h *ReportHandler) HandleHTML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rep, err := h.deps.Report(r.Context())
	if err != nil {
		fail(w, r, h.logger, h.deps, "report", err)
		return
	}
	if err := render(w, http.StatusOK, "report.html", page{
		Title:   "Results",
		Surveys: surveyNames(h.deps),
		Data:    rep,
	}); err != nil {
		h.logger.Error(r.Context(), "render report", logger.Error(err))
	}
}

// HandleJSON handles GET /api/report requests.
func (h *ReportHandler) HandleJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rep, err := h.deps.Report(r.Context())
	if err != nil {
		status := statusOf(err)
		if status >= statusInternalError {
			h.logger.Error(r.Context(), "report", logger.Error(err))
		}
		writeError(w, status, "report_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
