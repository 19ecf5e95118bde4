// Package presentation decides the order in which an item's renderings are
// shown and keeps the permutation so choices can be mapped back to systems.
package presentation

import (
	"math/rand/v2"

	"github.com/okian/listeval/internal/domain/model"
)

// Order is a permutation applied to an item's entries before display:
// position k shows stored entry Perm[k].
type Order struct {
	Perm       []int `json:"perm"`
	Swapped    bool  `json:"swapped,omitempty"`
	FixedFirst bool  `json:"fixed_first,omitempty"`
}

// Identity returns the order that leaves n entries in place.
func Identity(n int) Order {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return Order{Perm: perm}
}

// Len returns the number of positions.
func (o Order) Len() int { return len(o.Perm) }

// Source returns the stored index shown at display position pos.
func (o Order) Source(pos int) int { return o.Perm[pos] }

// Apply returns entries in display order. Entries whose length does not
// match the permutation are returned unchanged (copied).
func (o Order) Apply(entries []model.Candidate) []model.Candidate {
	out := make([]model.Candidate, len(entries))
	if len(entries) != len(o.Perm) {
		copy(out, entries)
		return out
	}
	for pos, src := range o.Perm {
		out[pos] = entries[src]
	}
	return out
}

// Policy owns the random source of one rating session.
type Policy struct {
	rng *rand.Rand
}

// New returns a Policy. With a seed the policy is deterministic for the
// (seed, stream) pair, so a paged survey passes the page index as stream to
// reshow identical orders. Without a seed each policy gets fresh state.
func New(seed *uint64, stream uint64) *Policy {
	if seed == nil {
		return NewWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return NewWithSource(rand.NewPCG(*seed, stream))
}

// NewWithSource wraps an explicit source.
func NewWithSource(src rand.Source) *Policy {
	return &Policy{rng: rand.New(src)}
}

// Swap flips a fair coin for a two-candidate item.
func (p *Policy) Swap() Order {
	if p.rng.Float64() < 0.5 {
		return Order{Perm: []int{1, 0}, Swapped: true}
	}
	return Order{Perm: []int{0, 1}}
}

// Shuffle returns a uniformly random permutation of n entries. With
// fixedFirst entry 0 keeps position 0 and only the rest are permuted.
func (p *Policy) Shuffle(n int, fixedFirst bool) Order {
	o := Identity(n)
	o.FixedFirst = fixedFirst
	tail := o.Perm
	if fixedFirst && n > 0 {
		tail = o.Perm[1:]
	}
	if len(tail) > 1 {
		p.rng.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
	}
	return o
}
