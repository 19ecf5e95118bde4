// Package collect gathers the scores of one rating session and turns a
// complete sheet into a submission batch.
package collect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/listeval/internal/domain/model"
)

// Validation failures reported back to the rater.
var (
	ErrIncompleteScores = errors.New("missing scores")
	ErrMissingRater     = errors.New("missing rater identifier")
	ErrInvalidRater     = errors.New("invalid rater identifier")
	ErrScoreOutOfRange  = errors.New("score out of range")
	ErrUnknownSlot      = errors.New("unknown score slot")
)

// The rater name becomes a file name, so separators and dots are refused.
type raterInput struct {
	Rater string `validate:"required,max=64,excludesall=/\\.:*?<>"`
}

var validate = validator.New()

// NormalizeRater trims surrounding whitespace from a rater identifier.
func NormalizeRater(rater string) string { return strings.TrimSpace(rater) }

// CheckRater validates a (normalized) rater identifier.
func CheckRater(rater string) error {
	if rater == "" {
		return ErrMissingRater
	}
	if err := validate.Struct(raterInput{Rater: rater}); err != nil {
		return fmt.Errorf("%q: %w", rater, ErrInvalidRater)
	}
	return nil
}

// Scale bounds accepted scores, inclusive.
type Scale struct {
	Min int
	Max int
}

// Contains reports whether v lies on the scale.
func (s Scale) Contains(v int) bool { return v >= s.Min && v <= s.Max }

// Values lists every score on the scale in ascending order.
func (s Scale) Values() []int {
	if s.Max < s.Min {
		return nil
	}
	out := make([]int, 0, s.Max-s.Min+1)
	for v := s.Min; v <= s.Max; v++ {
		out = append(out, v)
	}
	return out
}

// SlotKey identifies one expected score.
type SlotKey struct {
	Item   string
	System string
	Metric string
}

func (k SlotKey) String() string { return k.Item + "/" + k.System + "/" + k.Metric }

type slot struct {
	audio string
	score int
	set   bool
}

// Sheet is the explicit per-session form state: one slot per
// (item, system, metric) presented to the rater. It is not safe for
// concurrent use; sessions guard it.
type Sheet struct {
	scale Scale
	order []SlotKey
	slots map[SlotKey]*slot
}

// NewSheet returns an empty sheet accepting scores on scale.
func NewSheet(scale Scale) *Sheet {
	return &Sheet{scale: scale, slots: make(map[SlotKey]*slot)}
}

// Scale returns the accepted score range.
func (s *Sheet) Scale() Scale { return s.scale }

// Expect registers a slot. Registering the same key twice is a no-op.
func (s *Sheet) Expect(key SlotKey, audio string) {
	if _, ok := s.slots[key]; ok {
		return
	}
	s.slots[key] = &slot{audio: audio}
	s.order = append(s.order, key)
}

// Set fills a slot.
func (s *Sheet) Set(key SlotKey, score int) error {
	sl, ok := s.slots[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrUnknownSlot)
	}
	if !s.scale.Contains(score) {
		return fmt.Errorf("%s=%d not in [%d,%d]: %w", key, score, s.scale.Min, s.scale.Max, ErrScoreOutOfRange)
	}
	sl.score, sl.set = score, true
	return nil
}

// Clear empties a slot.
func (s *Sheet) Clear(key SlotKey) {
	if sl, ok := s.slots[key]; ok {
		sl.score, sl.set = 0, false
	}
}

// Score returns the value of a slot and whether it is filled.
func (s *Sheet) Score(key SlotKey) (int, bool) {
	sl, ok := s.slots[key]
	if !ok || !sl.set {
		return 0, false
	}
	return sl.score, true
}

// Len returns the number of expected slots.
func (s *Sheet) Len() int { return len(s.order) }

// Keys returns the slots in registration order.
func (s *Sheet) Keys() []SlotKey {
	return append([]SlotKey(nil), s.order...)
}

// Missing returns the unfilled slots in registration order.
func (s *Sheet) Missing() []SlotKey {
	var out []SlotKey
	for _, k := range s.order {
		if !s.slots[k].set {
			out = append(out, k)
		}
	}
	return out
}

// Validate checks that every slot is filled and that rater is usable.
// Both failure classes are reported together; use errors.Is to tell them
// apart.
func (s *Sheet) Validate(rater string) error {
	var errs []error
	if missing := len(s.Missing()); missing > 0 {
		errs = append(errs, fmt.Errorf("%d of %d: %w", missing, len(s.order), ErrIncompleteScores))
	}
	if err := CheckRater(NormalizeRater(rater)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Batch validates the sheet and returns one record per slot, in
// registration order, attributed to key.Rater.
func (s *Sheet) Batch(key model.SubmissionKey) (model.SubmissionBatch, error) {
	key.Rater = NormalizeRater(key.Rater)
	if err := s.Validate(key.Rater); err != nil {
		return model.SubmissionBatch{}, err
	}
	records := make([]model.RatingRecord, 0, len(s.order))
	for _, k := range s.order {
		sl := s.slots[k]
		records = append(records, model.RatingRecord{
			Audio:  sl.audio,
			System: k.System,
			Metric: k.Metric,
			Score:  sl.score,
			Rater:  key.Rater,
			Item:   k.Item,
		})
	}
	return model.SubmissionBatch{Key: key, Records: records}, nil
}
