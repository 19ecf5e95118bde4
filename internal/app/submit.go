package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/listeval/internal/adapters/repository"
	"github.com/okian/listeval/internal/domain/collect"
	"github.com/okian/listeval/internal/domain/model"
	"github.com/okian/listeval/internal/domain/session"
	"github.com/okian/listeval/pkg/logger"
	"github.com/okian/listeval/pkg/metrics"
)

// Submission outcomes.
const (
	StatusStored    = "stored"
	StatusDuplicate = "duplicate"
	StatusInvalid   = "invalid"
)

// ABXSubmission carries the raw positional choices of an ABX form:
// item index to chosen display position.
type ABXSubmission struct {
	SessionID string
	Rater     string
	Choices   map[int]int
}

// ScoreRef addresses one MOS form field by indices into the rendered form.
type ScoreRef struct {
	Item     int
	Position int
	Metric   int
}

// MOSSubmission carries the raw scores of a MOS form.
type MOSSubmission struct {
	SessionID string
	Rater     string
	Scores    map[ScoreRef]int
}

// Result reports what happened to a submission. On StatusInvalid, Form is
// the same session re-rendered with the values that were accepted.
type Result struct {
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`
	Records int    `json:"records"`
	Form    *Form  `json:"form,omitempty"`
}

// SubmitABX maps choices back to systems and stores the batch.
func (s *Service) SubmitABX(ctx context.Context, sub ABXSubmission) (Result, error) {
	sv, err := s.survey(model.SurveyABX)
	if err != nil {
		return Result{}, err
	}
	sess, err := s.take(ctx, sv, sub.SessionID)
	if err != nil {
		return Result{}, err
	}

	metric := sv.metrics[0]
	var errs []error
	for _, k := range sess.Sheet.Keys() {
		sess.Sheet.Clear(k)
	}
	for i, pos := range sub.Choices {
		if i < 0 || i >= len(sess.Items) || pos < 0 || pos >= sess.Orders[i].Len() {
			errs = append(errs, fmt.Errorf("choice %d=%d: %w", i, pos, collect.ErrUnknownSlot))
			continue
		}
		it, order := sess.Items[i], sess.Orders[i]
		for p := range order.Perm {
			c := it.Candidates[order.Source(p)]
			score := 0
			if p == pos {
				score = 1
			}
			if err := sess.Sheet.Set(collect.SlotKey{Item: it.ID, System: c.System, Metric: metric}, score); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return s.finish(ctx, sv, sess, sub.Rater, errs)
}

// SubmitMOS maps positional scores back to systems and stores the batch.
func (s *Service) SubmitMOS(ctx context.Context, sub MOSSubmission) (Result, error) {
	sv, err := s.survey(model.SurveyMOS)
	if err != nil {
		return Result{}, err
	}
	sess, err := s.take(ctx, sv, sub.SessionID)
	if err != nil {
		return Result{}, err
	}

	var errs []error
	for _, k := range sess.Sheet.Keys() {
		sess.Sheet.Clear(k)
	}
	for ref, score := range sub.Scores {
		key, ok := slotFor(sv, sess, ref)
		if !ok {
			errs = append(errs, fmt.Errorf("field %d/%d/%d: %w", ref.Item, ref.Position, ref.Metric, collect.ErrUnknownSlot))
			continue
		}
		if err := sess.Sheet.Set(key, score); err != nil {
			errs = append(errs, err)
		}
	}
	return s.finish(ctx, sv, sess, sub.Rater, errs)
}

func slotFor(sv *survey, sess *session.Session, ref ScoreRef) (collect.SlotKey, bool) {
	if ref.Item < 0 || ref.Item >= len(sess.Items) || ref.Metric < 0 || ref.Metric >= len(sv.metrics) {
		return collect.SlotKey{}, false
	}
	order := sess.Orders[ref.Item]
	if ref.Position < 0 || ref.Position >= order.Len() {
		return collect.SlotKey{}, false
	}
	src := order.Source(ref.Position)
	if order.FixedFirst && src == 0 {
		return collect.SlotKey{}, false
	}
	it := sess.Items[ref.Item]
	return collect.SlotKey{Item: it.ID, System: it.Entries()[src].System, Metric: sv.metrics[ref.Metric]}, true
}

func (s *Service) take(ctx context.Context, sv *survey, id string) (*session.Session, error) {
	sess, err := s.sessions.Take(ctx, id)
	if err != nil {
		metrics.RecordSubmission(sv.name, metrics.OutcomeExpired)
		return nil, err
	}
	if sess.Survey != sv.name {
		s.sessions.Put(ctx, sess)
		return nil, fmt.Errorf("session belongs to %s: %w", sess.Survey, ErrSessionNotFound)
	}
	return sess, nil
}

// finish validates the sheet and persists it exactly once. Invalid sheets
// put the session back so the rater can correct the form.
func (s *Service) finish(ctx context.Context, sv *survey, sess *session.Session, rater string, errs []error) (Result, error) {
	start := time.Now()
	log := s.logger.Named(sv.name)
	rater = collect.NormalizeRater(rater)

	batch, err := sess.Sheet.Batch(sess.Key(rater))
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		s.sessions.Put(ctx, sess)
		metrics.RecordSubmission(sv.name, metrics.OutcomeInvalid)
		log.Info(ctx, "submission rejected",
			logger.String("rater", rater),
			logger.Int("missing", len(sess.Sheet.Missing())),
			logger.Error(err))
		return Result{Status: StatusInvalid, Form: s.render(sv, sess, rater)}, err
	}

	path, err := s.store.Save(ctx, batch)
	switch {
	case errors.Is(err, repository.ErrAlreadyCompleted):
		metrics.RecordSubmission(sv.name, metrics.OutcomeDuplicate)
		metrics.UpdateActiveSessions(s.sessions.Size())
		log.Warn(ctx, "already completed",
			logger.String("rater", rater),
			logger.Int("page", sess.Page))
		return Result{Status: StatusDuplicate, Path: path}, nil
	case err != nil:
		s.sessions.Put(ctx, sess)
		metrics.RecordSubmission(sv.name, metrics.OutcomeFailed)
		metrics.RecordErrorLatency("store", "save_failed", float64(time.Since(start).Milliseconds()))
		return Result{}, fmt.Errorf("store submission: %w", err)
	}

	metrics.RecordSubmission(sv.name, metrics.OutcomeStored)
	metrics.RecordRecordsWritten(sv.name, len(batch.Records))
	metrics.UpdateActiveSessions(s.sessions.Size())
	log.Info(ctx, "submission stored",
		logger.String("rater", rater),
		logger.Int("page", sess.Page),
		logger.Int("records", len(batch.Records)),
		logger.String("path", path))
	return Result{Status: StatusStored, Path: path, Records: len(batch.Records)}, nil
}
