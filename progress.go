package pkzip

import "sync/atomic"

// Progress is a minimal stand-in for a hierarchical progress object such as
// Foundation's Progress/NSProgress: a total/completed unit pair, a
// cooperative cancel flag, and weighted child composition. The archive
// engine never constructs a Progress itself — callers hand one in (or pass
// nil, in which case progress reporting and cancellation are both no-ops).
type Progress struct {
	total     int64
	completed int64
	cancelled int32

	parent       *Progress
	parentWeight int64
	parentUnits  int64 // units this child is worth out of parent.total
}

// NewProgress creates a root Progress with the given total unit count.
func NewProgress(totalUnitCount int64) *Progress {
	return &Progress{total: totalUnitCount}
}

// TotalUnitCount returns the configured total.
func (p *Progress) TotalUnitCount() int64 {
	if p == nil {
		return 0
	}
	return atomic.LoadInt64(&p.total)
}

// CompletedUnitCount returns units completed so far.
func (p *Progress) CompletedUnitCount() int64 {
	if p == nil {
		return 0
	}
	return atomic.LoadInt64(&p.completed)
}

// SetTotalUnitCount overrides the total, e.g. once the true size is known.
func (p *Progress) SetTotalUnitCount(total int64) {
	if p == nil {
		return
	}
	atomic.StoreInt64(&p.total, total)
}

// Advance adds n completed units and propagates a proportional share to any
// parent this Progress was registered with via AddChild.
func (p *Progress) Advance(n int64) {
	if p == nil || n == 0 {
		return
	}
	atomic.AddInt64(&p.completed, n)
	if p.parent != nil && p.parentUnits > 0 {
		total := p.TotalUnitCount()
		if total > 0 {
			share := n * p.parentUnits / total
			p.parent.Advance(share)
		}
	}
}

// AddChild registers child as a sub-progress worth pendingUnitCount out of
// this Progress's total. Advancing child proportionally advances the
// parent; cancelling the parent is observed by the child via IsCancelled.
func (p *Progress) AddChild(child *Progress, pendingUnitCount int64) {
	if p == nil || child == nil {
		return
	}
	child.parent = p
	child.parentUnits = pendingUnitCount
}

// Cancel sets the cooperative cancel flag. Safe to call from any goroutine.
func (p *Progress) Cancel() {
	if p == nil {
		return
	}
	atomic.StoreInt32(&p.cancelled, 1)
	if p.parent != nil {
		p.parent.Cancel()
	}
}

// IsCancelled reports whether Cancel has been called on this Progress or
// any of its ancestors.
func (p *Progress) IsCancelled() bool {
	if p == nil {
		return false
	}
	if atomic.LoadInt32(&p.cancelled) != 0 {
		return true
	}
	if p.parent != nil {
		return p.parent.IsCancelled()
	}
	return false
}
