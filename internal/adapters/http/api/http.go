// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/listeval/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ABXDependencies
	MOSDependencies
	ReportDependencies
	AudioDependencies
	StatsProvider
}

// Server wires HTTP routes for the rating forms and reports.
type Server struct {
	indexHandler  *IndexHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	abxHandler    *ABXHandler
	mosHandler    *MOSHandler
	reportHandler *ReportHandler
	audioHandler  *AudioHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		indexHandler:  NewIndexHandler(deps, log.Named("index")),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		abxHandler:    NewABXHandler(deps, log.Named("abx")),
		mosHandler:    NewMOSHandler(deps, log.Named("mos")),
		reportHandler: NewReportHandler(deps, log.Named("report")),
		audioHandler:  NewAudioHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/abx", MetricsMiddleware(s.abxHandler.Handle, "abx"))
	mux.HandleFunc("/mos", MetricsMiddleware(s.mosHandler.Handle, "mos"))
	mux.HandleFunc("/report", MetricsMiddleware(s.reportHandler.HandleHTML, "report"))
	mux.HandleFunc("/api/report", MetricsMiddleware(s.reportHandler.HandleJSON, "api_report"))
	mux.HandleFunc("/audio/", MetricsMiddleware(s.audioHandler.HandleAudio, "audio"))
	mux.HandleFunc("/{$}", MetricsMiddleware(s.indexHandler.HandleIndex, "index"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
