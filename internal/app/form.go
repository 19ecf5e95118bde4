package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/listeval/internal/domain/collect"
	"github.com/okian/listeval/internal/domain/model"
	"github.com/okian/listeval/internal/domain/presentation"
	"github.com/okian/listeval/internal/domain/session"
	"github.com/okian/listeval/pkg/metrics"
)

// NoChoice marks an ABX item without a selection.
const NoChoice = -1

// Form is what a rater sees: the items of one page in display order.
type Form struct {
	SessionID   string     `json:"session_id"`
	Survey      string     `json:"survey"`
	Page        int        `json:"page"`
	Pages       int        `json:"pages"`
	Paged       bool       `json:"paged"`
	Prompt      string     `json:"prompt,omitempty"`
	Metrics     []string   `json:"metrics"`
	Scale       []int      `json:"scale"`
	RevealNames bool       `json:"reveal_names"`
	Rater       string     `json:"rater,omitempty"`
	Items       []FormItem `json:"items"`
}

// FormItem is one comparison item. Reference is shown but never rated.
type FormItem struct {
	Index     int         `json:"index"`
	ID        string      `json:"id"`
	Reference *FormEntry  `json:"reference,omitempty"`
	Entries   []FormEntry `json:"entries"`
	Choice    int         `json:"choice"`
}

// FormEntry is one rendering at a display position. System is empty unless
// names are revealed. Scores holds the current value per metric.
type FormEntry struct {
	Position int     `json:"position"`
	Label    string  `json:"label"`
	System   string  `json:"system,omitempty"`
	Src      string  `json:"src"`
	Scores   []Score `json:"scores,omitempty"`
}

// Score is a form value that may be unset.
type Score struct {
	Value int  `json:"value"`
	Set   bool `json:"set"`
}

// OpenABX starts an ABX session.
func (s *Service) OpenABX(ctx context.Context) (*Form, error) {
	sv, err := s.survey(model.SurveyABX)
	if err != nil {
		return nil, err
	}
	if len(sv.pages) == 0 {
		return nil, ErrNoItems
	}
	items := sv.pages[0]
	policy := presentation.New(sv.seed, 0)
	sheet := collect.NewSheet(sv.scale)
	orders := make([]presentation.Order, len(items))
	for i, it := range items {
		orders[i] = pickPair(policy, len(it.Candidates))
		for pos := range orders[i].Perm {
			c := it.Candidates[orders[i].Source(pos)]
			sheet.Expect(collect.SlotKey{Item: it.ID, System: c.System, Metric: sv.metrics[0]}, c.Path)
		}
	}
	return s.open(ctx, sv, 0, items, orders, sheet), nil
}

// pickPair chooses the two candidates shown side by side. With exactly two
// it is a fair swap; with more, a random pair in random order.
func pickPair(p *presentation.Policy, n int) presentation.Order {
	if n == 2 {
		return p.Swap()
	}
	o := p.Shuffle(n, false)
	perm := o.Perm[:2]
	return presentation.Order{Perm: perm, Swapped: perm[0] > perm[1]}
}

// OpenMOS starts a session for one MOS page (0-based).
func (s *Service) OpenMOS(ctx context.Context, page int) (*Form, error) {
	sv, err := s.survey(model.SurveyMOS)
	if err != nil {
		return nil, err
	}
	if len(sv.pages) == 0 {
		return nil, ErrNoItems
	}
	if page < 0 || page >= len(sv.pages) {
		return nil, fmt.Errorf("page %d of %d: %w", page, len(sv.pages), ErrPageOutOfRange)
	}
	items := sv.pages[page]
	policy := presentation.New(sv.seed, uint64(page))
	sheet := collect.NewSheet(sv.scale)
	orders := make([]presentation.Order, len(items))
	for i, it := range items {
		entries := it.Entries()
		fixed := sv.fixedFirst && it.Reference != nil
		if sv.shuffle {
			orders[i] = policy.Shuffle(len(entries), fixed)
		} else {
			orders[i] = presentation.Identity(len(entries))
			orders[i].FixedFirst = fixed
		}
		for pos := range orders[i].Perm {
			src := orders[i].Source(pos)
			if fixed && src == 0 {
				continue
			}
			e := entries[src]
			for _, m := range sv.metrics {
				sheet.Expect(collect.SlotKey{Item: it.ID, System: e.System, Metric: m}, e.Path)
			}
		}
	}
	return s.open(ctx, sv, page, items, orders, sheet), nil
}

func (s *Service) open(ctx context.Context, sv *survey, page int, items []model.ComparisonItem, orders []presentation.Order, sheet *collect.Sheet) *Form {
	sess := &session.Session{
		Survey: sv.name,
		Page:   page,
		Paged:  sv.paged,
		Items:  items,
		Orders: orders,
		Sheet:  sheet,
	}
	s.sessions.Put(ctx, sess)
	metrics.RecordPageServed(sv.name)
	metrics.UpdateActiveSessions(s.sessions.Size())
	return s.render(sv, sess, "")
}

// render builds the view of a session, including any scores already set.
func (s *Service) render(sv *survey, sess *session.Session, rater string) *Form {
	f := &Form{
		SessionID:   sess.ID,
		Survey:      sv.name,
		Page:        sess.Page,
		Pages:       len(sv.pages),
		Paged:       sv.paged,
		Prompt:      sv.prompt,
		Metrics:     sv.metrics,
		Scale:       sv.scale.Values(),
		RevealNames: sv.reveal,
		Rater:       rater,
		Items:       make([]FormItem, len(sess.Items)),
	}
	for i, it := range sess.Items {
		if sv.name == model.SurveyABX {
			f.Items[i] = s.renderABX(sv, sess, i, it)
		} else {
			f.Items[i] = s.renderMOS(sv, sess, i, it)
		}
	}
	return f
}

func (s *Service) renderABX(sv *survey, sess *session.Session, i int, it model.ComparisonItem) FormItem {
	fi := FormItem{Index: i, ID: it.ID, Choice: NoChoice}
	if it.Reference != nil {
		fi.Reference = &FormEntry{Position: -1, Label: "X", Src: s.catalog.URL(it.Reference.Path)}
	}
	order := sess.Orders[i]
	for pos := range order.Perm {
		c := it.Candidates[order.Source(pos)]
		e := FormEntry{Position: pos, Label: string(rune('A' + pos)), Src: s.catalog.URL(c.Path)}
		if sv.reveal {
			e.System = c.System
		}
		if v, ok := sess.Sheet.Score(collect.SlotKey{Item: it.ID, System: c.System, Metric: sv.metrics[0]}); ok && v == 1 {
			fi.Choice = pos
		}
		fi.Entries = append(fi.Entries, e)
	}
	return fi
}

func (s *Service) renderMOS(sv *survey, sess *session.Session, i int, it model.ComparisonItem) FormItem {
	fi := FormItem{Index: i, ID: it.ID, Choice: NoChoice}
	order := sess.Orders[i]
	entries := it.Entries()
	for pos := range order.Perm {
		src := order.Source(pos)
		c := entries[src]
		e := FormEntry{Position: pos, Label: strconv.Itoa(pos + 1), Src: s.catalog.URL(c.Path)}
		if sv.reveal {
			e.System = c.System
		}
		if order.FixedFirst && src == 0 {
			e.Label = "Reference"
			fi.Reference = &e
			continue
		}
		e.Scores = make([]Score, len(sv.metrics))
		for m, name := range sv.metrics {
			v, ok := sess.Sheet.Score(collect.SlotKey{Item: it.ID, System: c.System, Metric: name})
			e.Scores[m] = Score{Value: v, Set: ok}
		}
		fi.Entries = append(fi.Entries, e)
	}
	return fi
}
