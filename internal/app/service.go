// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/listeval/internal/adapters/repository"
	"github.com/okian/listeval/internal/config"
	"github.com/okian/listeval/internal/domain/aggregate"
	"github.com/okian/listeval/internal/domain/collect"
	"github.com/okian/listeval/internal/domain/model"
	"github.com/okian/listeval/internal/domain/session"
	"github.com/okian/listeval/internal/domain/stimulus"
	"github.com/okian/listeval/pkg/logger"
	"github.com/okian/listeval/pkg/metrics"
)

// Sentinel kinds returned by the service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrNoStore         = errors.New("no result store configured")
	ErrSurveyDisabled  = errors.New("survey not enabled")
	ErrNoItems         = errors.New("survey has no items")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrSessionNotFound = session.ErrNotFound
)

// survey is a built stimulus set plus its presentation settings.
type survey struct {
	name       string
	pages      [][]model.ComparisonItem
	items      int
	systems    []string
	metrics    []string
	scale      collect.Scale
	seed       *uint64
	shuffle    bool
	paged      bool
	fixedFirst bool
	reveal     bool
	prompt     string
}

// Service implements the API dependencies for the listening tests.
type Service struct {
	mu sync.RWMutex

	abxCfg *config.ABX
	mosCfg *config.MOS

	abx *survey
	mos *survey

	store      repository.Store
	sessions   *session.Registry
	aggregator *aggregate.Aggregator
	catalog    *Catalog
	alpha      float64

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithABX enables the ABX preference test.
func WithABX(cfg config.ABX) Option {
	return func(s *Service) {
		s.abxCfg = &cfg
	}
}

// WithMOS enables the MOS survey.
func WithMOS(cfg config.MOS) Option {
	return func(s *Service) {
		s.mosCfg = &cfg
	}
}

// WithStore sets where submissions are written and read back from.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSessions sets the session registry.
func WithSessions(r *session.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.sessions = r
		}
	}
}

// WithAlpha sets the report significance level.
func WithAlpha(alpha float64) Option {
	return func(s *Service) {
		s.alpha = alpha
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig translates a loaded Config into service options.
func FromConfig(cfg *config.Config, store repository.Store) []Option {
	opts := []Option{
		WithStore(store),
		WithAlpha(cfg.Alpha),
		WithSessions(session.NewRegistry(
			session.WithMaxSize(cfg.MaxSessions),
			session.WithTTL(cfg.SessionTTL),
		)),
	}
	if cfg.ABX.Enabled {
		opts = append(opts, WithABX(cfg.ABX))
	}
	if cfg.MOS.Enabled {
		opts = append(opts, WithMOS(cfg.MOS))
	}
	return opts
}

// New constructs a new Service. Call Start before use.
func New(opts ...Option) *Service {
	s := &Service{
		alpha:   aggregate.DefaultAlpha,
		catalog: NewCatalog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start discovers the stimulus sets and wires the aggregator.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		return ErrNoStore
	}
	if s.sessions == nil {
		s.sessions = session.NewRegistry()
	}

	s.logger.Info(ctx, "starting listening test service...")

	if s.abxCfg != nil {
		sv, err := buildABX(*s.abxCfg)
		if err != nil {
			return fmt.Errorf("build abx set: %w", err)
		}
		s.abx = sv
		s.register(ctx, sv)
	}
	if s.mosCfg != nil {
		sv, err := buildMOS(*s.mosCfg)
		if err != nil {
			return fmt.Errorf("build mos set: %w", err)
		}
		s.mos = sv
		s.register(ctx, sv)
	}

	s.aggregator = aggregate.New(s.store,
		aggregate.WithAlpha(s.alpha),
		aggregate.WithLogger(s.logger.Named("aggregate")),
	)

	s.started = true
	s.logger.Info(ctx, "listening test service started",
		logger.Bool("abx", s.abx != nil),
		logger.Bool("mos", s.mos != nil),
		logger.Int("audio_files", s.catalog.Len()),
	)
	return nil
}

// register catalogues every audio path of the survey.
func (s *Service) register(ctx context.Context, sv *survey) {
	for _, page := range sv.pages {
		for _, it := range page {
			for _, e := range it.Entries() {
				s.catalog.Register(e.Path)
			}
		}
	}
	metrics.UpdateStimulusItems(sv.name, sv.items)
	s.logger.Info(ctx, "stimulus set ready",
		logger.String("survey", sv.name),
		logger.Int("items", sv.items),
		logger.Int("pages", len(sv.pages)),
		logger.Strings("systems", sv.systems),
	)
	if sv.items == 0 {
		s.logger.Warn(ctx, "no items matched", logger.String("survey", sv.name))
	}
}

// Stop drops all open sessions.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.sessions = session.NewRegistry()
	metrics.UpdateActiveSessions(0)
	s.started = false
	s.logger.Info(context.Background(), "listening test service stopped")
}

func buildABX(cfg config.ABX) (*survey, error) {
	ref := stimulus.NewRoot("", cfg.ReferenceDir)
	items, err := stimulus.BuildABX(ref, cfg.Extension, roots("", cfg.Systems))
	if err != nil {
		return nil, err
	}
	return &survey{
		name:    model.SurveyABX,
		pages:   stimulus.Paginate(items, 0),
		items:   len(items),
		systems: systemsOf(items),
		metrics: []string{cfg.Metric},
		scale:   collect.Scale{Min: 0, Max: 1},
		seed:    cfg.Seed,
		shuffle: true,
		prompt:  cfg.Prompt,
	}, nil
}

func buildMOS(cfg config.MOS) (*survey, error) {
	var (
		items []model.ComparisonItem
		err   error
	)
	switch {
	case cfg.Source == config.SourceManifest:
		items, err = stimulus.LoadManifest(cfg.Manifest, cfg.FirstIsReference)
	case cfg.Nested:
		ref := stimulus.NewRoot(cfg.ReferenceName, cfg.ReferenceDir)
		items, err = stimulus.BuildNested(ref, cfg.Extension, roots("", cfg.Systems), stimulus.RequireAny)
	default:
		ref := stimulus.NewRoot(cfg.ReferenceName, cfg.ReferenceDir)
		items, err = stimulus.BuildMOS(ref, cfg.Extension, roots("", cfg.Systems))
	}
	if err != nil {
		return nil, err
	}
	metricNames := cfg.Metrics
	if len(metricNames) == 0 {
		metricNames = []string{config.DefaultMetric}
	}
	return &survey{
		name:       model.SurveyMOS,
		pages:      stimulus.Paginate(items, cfg.PageSize),
		items:      len(items),
		systems:    systemsOf(items),
		metrics:    metricNames,
		scale:      collect.Scale{Min: cfg.ScoreMin, Max: cfg.ScoreMax},
		seed:       cfg.Seed,
		shuffle:    cfg.Shuffle,
		paged:      cfg.PageSize > 0,
		fixedFirst: cfg.FirstIsReference,
		reveal:     cfg.RevealNames,
	}, nil
}

func roots(name string, dirs []string) []stimulus.Root {
	out := make([]stimulus.Root, len(dirs))
	for i, d := range dirs {
		out[i] = stimulus.NewRoot(name, d)
	}
	return out
}

func systemsOf(items []model.ComparisonItem) []string {
	seen := map[string]struct{}{}
	for _, it := range items {
		for _, c := range it.Candidates {
			seen[c.System] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Service) survey(name string) (*survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	var sv *survey
	switch name {
	case model.SurveyABX:
		sv = s.abx
	case model.SurveyMOS:
		sv = s.mos
	}
	if sv == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrSurveyDisabled)
	}
	return sv, nil
}

// Report aggregates every stored submission.
func (s *Service) Report(ctx context.Context) (aggregate.Report, error) {
	s.mu.RLock()
	agg := s.aggregator
	s.mu.RUnlock()
	if agg == nil {
		return aggregate.Report{}, ErrNotStarted
	}
	return agg.Run(ctx)
}

// AudioPath resolves an audio token to a local file path.
func (s *Service) AudioPath(token string) (string, bool) {
	return s.catalog.Lookup(token)
}

// SurveyStats describes one configured survey.
type SurveyStats struct {
	Name    string   `json:"name"`
	Items   int      `json:"items"`
	Pages   int      `json:"pages"`
	Paged   bool     `json:"paged"`
	Systems []string `json:"systems"`
	Metrics []string `json:"metrics"`
}

// Stats is the JSON body of the stats endpoint.
type Stats struct {
	Started        bool          `json:"started"`
	Surveys        []SurveyStats `json:"surveys"`
	ActiveSessions int           `json:"active_sessions"`
	AudioFiles     int           `json:"audio_files"`
	Alpha          float64       `json:"alpha"`
	Time           time.Time     `json:"time"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:    s.started,
		Surveys:    []SurveyStats{},
		AudioFiles: s.catalog.Len(),
		Alpha:      s.alpha,
		Time:       time.Now().UTC(),
	}
	for _, sv := range []*survey{s.abx, s.mos} {
		if sv == nil {
			continue
		}
		st.Surveys = append(st.Surveys, SurveyStats{
			Name:    sv.name,
			Items:   sv.items,
			Pages:   len(sv.pages),
			Paged:   sv.paged,
			Systems: sv.systems,
			Metrics: sv.metrics,
		})
	}
	if s.sessions != nil {
		st.ActiveSessions = s.sessions.Size()
		metrics.UpdateActiveSessions(st.ActiveSessions)
	}
	return st
}

// Surveys lists the enabled survey names.
func (s *Service) Surveys() []SurveyStats {
	return s.GetStats().Surveys
}
