package scheduler

import (
	"sync"
	"time"
)

// Timer is the handle of a scheduled task.
type Timer interface {
	Stop() bool
}

// AfterFunc runs f once after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer holds at most one pending task. Scheduling a new task cancels
// the pending one and restarts the delay.
type Debouncer struct {
	mu      sync.Mutex
	after   AfterFunc
	pending Timer
	gen     uint64
}

func NewDebouncer(after AfterFunc) *Debouncer {
	if after == nil {
		after = realAfterFunc
	}
	return &Debouncer{after: after}
}

// Schedule runs task after delay unless another Schedule or CancelPending
// call happens first.
func (d *Debouncer) Schedule(delay time.Duration, task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.after(delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			// superseded after the timer already fired
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		task()
	})
}

// CancelPending drops the scheduled task, reporting whether one was pending.
func (d *Debouncer) CancelPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return false
	}
	d.pending.Stop()
	d.pending = nil
	d.gen++
	return true
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
