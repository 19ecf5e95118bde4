package api

import (
	"net/http"

	"github.com/okian/listeval/pkg/logger"
)

// IndexHandler lists the enabled surveys.
type IndexHandler struct {
	stats  StatsProvider
	logger logger.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(stats StatsProvider, log logger.Logger) *IndexHandler {
	return &IndexHandler{stats: stats, logger: log}
}

// HandleIndex handles GET / requests.
func (h *IndexHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	st := h.stats.GetStats()
	if err := render(w, http.StatusOK, "index.html", page{
		Title:   "Listening tests",
		Surveys: surveyNames(h.stats),
		Data:    st.Surveys,
	}); err != nil {
		h.logger.Error(r.Context(), "render index", logger.Error(err))
	}
}
