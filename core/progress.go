package core

import "sync"

// ProgressFunc receives the completion percentage after every mutation.
type ProgressFunc func(percentage float64)

// Progress aggregates work units reported by concurrent sub-jobs. A single
// mutex guards both counters and the callback runs while it is held, so
// callbacks never overlap and always observe a consistent pair.
type Progress struct {
	total     int
	completed int
	onChange  ProgressFunc
	mu        sync.Mutex
}

// NewProgress creates an empty aggregate. fn may be nil.
func NewProgress(fn ProgressFunc) *Progress {
	return &Progress{onChange: fn}
}

// Stretch increases the known total amount of work. Non-positive amounts are ignored.
func (p *Progress) Stretch(amount int) {
	if amount <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.total += amount
	p.notifyLocked()
}

// Advance increases the completed amount of work. Work reported before the
// matching Stretch is kept, so the order of the two calls across sub-jobs does
// not matter. Non-positive amounts are ignored.
func (p *Progress) Advance(amount int) {
	if amount <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed += amount
	p.notifyLocked()
}

// Percentage returns completed/total*100 clamped to 100, or 0 when no total
// is known yet.
func (p *Progress) Percentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.percentageLocked()
}

// Total returns the known total amount of work.
func (p *Progress) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.total
}

// Completed returns the completed amount of work.
func (p *Progress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.completed
}

func (p *Progress) percentageLocked() float64 {
	if p.total == 0 {
		return 0
	}
	return min(float64(p.completed)/float64(p.total)*100, 100)
}

func (p *Progress) notifyLocked() {
	if p.onChange != nil {
		p.onChange(p.percentageLocked())
	}
}
