// Package workpool implements the Work Pool: a thread-safe dispenser of
// (particle, tag) pairs over a borrowed, read-only primaries array.
package workpool

import (
	"sync/atomic"

	"github.com/nebula-sim/nebula/internal/particle"
)

// Pool borrows particles and tags for its lifetime; it must not outlive
// the arrays it was constructed with (spec §3 ownership note).
type Pool struct {
	particles []particle.Particle
	tags      []particle.Tag
	cursor    atomic.Uint64
}

// New constructs a Pool over particles/tags, which must be the same
// length. The Pool does not copy them.
func New(particles []particle.Particle, tags []particle.Tag) *Pool {
	return &Pool{particles: particles, tags: tags}
}

// Total returns the number of primaries the pool was constructed with.
func (p *Pool) Total() int { return len(p.particles) }

// GetWork atomically reserves up to maxN consecutive primaries starting at
// the cursor. Returns borrowed views into the pool's backing arrays and
// the actual count reserved, which is 0 iff the pool is exhausted. Safe
// for any number of concurrent callers; each primary is delivered to
// exactly one caller.
func (p *Pool) GetWork(maxN int) ([]particle.Particle, []particle.Tag, int) {
	if maxN <= 0 {
		return nil, nil, 0
	}

	total := uint64(len(p.particles))
	for {
		cur := p.cursor.Load()
		if cur >= total {
			return nil, nil, 0
		}
		n := uint64(maxN)
		if remaining := total - cur; n > remaining {
			n = remaining
		}
		if p.cursor.CompareAndSwap(cur, cur+n) {
			return p.particles[cur : cur+n], p.tags[cur : cur+n], int(n)
		}
	}
}

// PrimariesToGo is observational: it may lag by one in-flight reservation
// but never reports 0 while unclaimed work remains.
func (p *Pool) PrimariesToGo() int {
	total := uint64(len(p.particles))
	cur := p.cursor.Load()
	if cur > total {
		cur = total
	}
	return int(total - cur)
}

// Done reports whether no further reservation can succeed.
func (p *Pool) Done() bool {
	return p.cursor.Load() >= uint64(len(p.particles))
}
