// Package aggregate turns submitted rating records into per-metric
// reports: score histograms, per-system means and a pairwise
// mean-difference / paired t-test matrix.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/listeval/internal/domain/model"
	"github.com/okian/listeval/internal/domain/stats"
	"github.com/okian/listeval/pkg/logger"
	"github.com/okian/listeval/pkg/metrics"
)

// DefaultAlpha is the significance level used when none is configured.
const DefaultAlpha = 0.05

// Source yields a snapshot of every submitted record.
type Source interface {
	// LoadAll returns all records and the number of files they came from.
	LoadAll(ctx context.Context) ([]model.RatingRecord, int, error)
}

// Report is the derived, read-only view over all submissions.
type Report struct {
	Alpha       float64        `json:"alpha" yaml:"alpha"`
	Files       int            `json:"files" yaml:"files"`
	Records     int            `json:"records" yaml:"records"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Metrics     []MetricReport `json:"metrics" yaml:"metrics"`
}

// MetricReport covers one metric (e.g. "quality").
type MetricReport struct {
	Metric     string                 `json:"metric" yaml:"metric"`
	Systems    []string               `json:"systems" yaml:"systems"`
	Records    int                    `json:"records" yaml:"records"`
	Scores     []int                  `json:"scores" yaml:"scores"`
	Histogram  map[string]map[int]int `json:"histogram" yaml:"histogram"`
	Counts     map[string]int         `json:"counts" yaml:"counts"`
	Means      map[string]float64     `json:"means" yaml:"means"`
	Rows       []WideRow              `json:"rows" yaml:"rows"`
	Duplicates int                    `json:"duplicates" yaml:"duplicates"`
	Matrix     [][]Cell               `json:"matrix" yaml:"matrix"`
	Pairs      []Pair                 `json:"pairs" yaml:"pairs"`
}

// WideRow is one (base item, rater) row of the pivoted table.
type WideRow struct {
	Item   string         `json:"item" yaml:"item"`
	Rater  string         `json:"rater" yaml:"rater"`
	Scores map[string]int `json:"scores" yaml:"scores"`
}

// Aggregator computes reports from a Source.
type Aggregator struct {
	source Source
	alpha  float64
	logger logger.Logger
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithAlpha sets the significance level; values outside (0,1) are ignored.
func WithAlpha(alpha float64) Option {
	return func(a *Aggregator) {
		if alpha > 0 && alpha < 1 {
			a.alpha = alpha
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Aggregator reading from source.
func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: source,
		alpha:  DefaultAlpha,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Alpha returns the configured significance level.
func (a *Aggregator) Alpha() float64 { return a.alpha }

// Run loads a fresh snapshot and aggregates it.
func (a *Aggregator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	records, files, err := a.source.LoadAll(ctx)
	if err != nil {
		metrics.RecordAggregationError()
		return Report{}, fmt.Errorf("load results: %w", err)
	}

	rep := Aggregate(records, a.alpha)
	rep.Files = files
	rep.GeneratedAt = a.now()

	elapsed := time.Since(start)
	metrics.RecordAggregation(float64(elapsed.Milliseconds()), len(records), files)
	a.logger.Info(ctx, "aggregated results",
		logger.Int("files", files),
		logger.Int("records", len(records)),
		logger.Int("metrics", len(rep.Metrics)),
		logger.Duration("elapsed", elapsed),
	)
	return rep, nil
}

// Aggregate groups records by metric and computes one MetricReport per
// metric, ordered by metric name.
func Aggregate(records []model.RatingRecord, alpha float64) Report {
	byMetric := make(map[string][]model.RatingRecord)
	for _, r := range records {
		byMetric[r.Metric] = append(byMetric[r.Metric], r)
	}
	names := make([]string, 0, len(byMetric))
	for m := range byMetric {
		names = append(names, m)
	}
	sort.Strings(names)

	rep := Report{Alpha: alpha, Records: len(records), Metrics: make([]MetricReport, 0, len(names))}
	for _, m := range names {
		rep.Metrics = append(rep.Metrics, aggregateMetric(m, byMetric[m], alpha))
	}
	return rep
}

type rowKey struct {
	item  string
	rater string
}

func aggregateMetric(metric string, records []model.RatingRecord, alpha float64) MetricReport {
	mr := MetricReport{
		Metric:    metric,
		Records:   len(records),
		Histogram: make(map[string]map[int]int),
		Counts:    make(map[string]int),
		Means:     make(map[string]float64),
	}

	scoreSet := make(map[int]struct{})
	sums := make(map[string]float64)
	rows := make(map[rowKey]map[string]int)
	for _, r := range records {
		h, ok := mr.Histogram[r.System]
		if !ok {
			h = make(map[int]int)
			mr.Histogram[r.System] = h
		}
		h[r.Score]++
		scoreSet[r.Score] = struct{}{}
		mr.Counts[r.System]++
		sums[r.System] += float64(r.Score)

		k := rowKey{item: r.BaseItem(), rater: r.Rater}
		row, ok := rows[k]
		if !ok {
			row = make(map[string]int)
			rows[k] = row
		}
		if _, dup := row[r.System]; dup {
			mr.Duplicates++
		}
		row[r.System] = r.Score
	}

	for sys := range mr.Histogram {
		mr.Systems = append(mr.Systems, sys)
		mr.Means[sys] = sums[sys] / float64(mr.Counts[sys])
	}
	sort.Strings(mr.Systems)
	for s := range scoreSet {
		mr.Scores = append(mr.Scores, s)
	}
	sort.Ints(mr.Scores)

	mr.Rows = make([]WideRow, 0, len(rows))
	for k, scores := range rows {
		mr.Rows = append(mr.Rows, WideRow{Item: k.item, Rater: k.rater, Scores: scores})
	}
	sort.Slice(mr.Rows, func(i, j int) bool {
		if mr.Rows[i].Item != mr.Rows[j].Item {
			return mr.Rows[i].Item < mr.Rows[j].Item
		}
		return mr.Rows[i].Rater < mr.Rows[j].Rater
	})

	mr.Matrix, mr.Pairs = pairMatrix(mr.Systems, mr.Rows, alpha)
	return mr
}

// pairMatrix fills the lower triangle: cell [i][j] with i > j compares the
// later system i against the earlier system j over the rows where both
// were scored.
func pairMatrix(systems []string, rows []WideRow, alpha float64) ([][]Cell, []Pair) {
	n := len(systems)
	matrix := make([][]Cell, n)
	for i := range matrix {
		matrix[i] = make([]Cell, n)
		for j := range matrix[i] {
			matrix[i][j] = Cell{State: CellEmpty}
		}
	}

	pairs := []Pair{}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			later, earlier := systems[i], systems[j]
			var x, y []float64
			for _, row := range rows {
				si, okI := row.Scores[later]
				sj, okJ := row.Scores[earlier]
				if okI && okJ {
					x = append(x, float64(si))
					y = append(y, float64(sj))
				}
			}
			// Lengths always match, so the error cannot occur here.
			res, _ := stats.PairedTTest(x, y)
			cell := newCell(res, alpha)
			matrix[i][j] = cell
			pairs = append(pairs, Pair{Later: later, Earlier: earlier, Cell: cell})
		}
	}
	return matrix, pairs
}
