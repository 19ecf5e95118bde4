// Package session keeps the open rating forms between page render and
// submission.
package session

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/listeval/internal/domain/collect"
	"github.com/okian/listeval/internal/domain/model"
	"github.com/okian/listeval/internal/domain/presentation"
)

// ErrNotFound is returned for unknown, expired or evicted sessions.
var ErrNotFound = errors.New("session not found")

const defaultMaxSize = 10_000

// Session is one rendered form: the items shown, the order each was shown
// in, and the slots the rater has to fill.
type Session struct {
	ID      string
	Survey  string
	Page    int
	Paged   bool
	Items   []model.ComparisonItem
	Orders  []presentation.Order
	Sheet   *collect.Sheet
	Created time.Time
}

// Key returns the submission key for rater.
func (s *Session) Key(rater string) model.SubmissionKey {
	return model.SubmissionKey{Survey: s.Survey, Rater: collect.NormalizeRater(rater), Page: s.Page, Paged: s.Paged}
}

// Registry is a bounded, concurrency-safe map of sessions. When full the
// oldest session is evicted.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byID:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put stores s, assigning an ID and creation time if missing, and returns
// the ID.
func (r *Registry) Put(_ context.Context, s *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Created.IsZero() {
		s.Created = r.now()
	}
	if el, ok := r.byID[s.ID]; ok {
		r.order.Remove(el)
		delete(r.byID, s.ID)
	}
	for r.maxSize > 0 && r.order.Len() >= r.maxSize {
		r.evictOldest()
	}
	r.byID[s.ID] = r.order.PushBack(s)
	return s.ID
}

// Get returns the session without removing it.
func (r *Registry) Get(_ context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	s := el.Value.(*Session)
	if r.expired(s) {
		r.remove(el)
		return nil, ErrNotFound
	}
	return s, nil
}

// Take removes and returns the session, so only one submission can work
// on it at a time. Put it back to keep it open.
func (r *Registry) Take(_ context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.remove(el)
	s := el.Value.(*Session)
	if r.expired(s) {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops the session if present.
func (r *Registry) Delete(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.byID[id]; ok {
		r.remove(el)
	}
}

// Size returns the number of open sessions.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// must hold r.mu
func (r *Registry) evictOldest() {
	if el := r.order.Front(); el != nil {
		r.remove(el)
	}
}

// must hold r.mu
func (r *Registry) remove(el *list.Element) {
	r.order.Remove(el)
	delete(r.byID, el.Value.(*Session).ID)
}

func (r *Registry) expired(s *Session) bool {
	return r.ttl > 0 && r.now().Sub(s.Created) > r.ttl
}
