package testfixtures

import (
	"sort"
	"sync"
	"time"

	"github.com/christopherklint97/sitehours/internal/scheduler"
)

// Timers is a manually driven scheduler.AfterFunc. Nothing fires until
// Advance moves its clock past a timer's deadline.
type Timers struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	owner *Timers
	id    int
	at    time.Duration
	f     func()
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if _, ok := t.owner.timers[t.id]; !ok {
		return false
	}
	delete(t.owner.timers, t.id)
	return true
}

func NewTimers() *Timers {
	return &Timers{timers: make(map[int]*manualTimer)}
}

// AfterFunc satisfies scheduler.AfterFunc.
func (m *Timers) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{owner: m, id: m.nextID, at: m.now + d, f: f}
	m.timers[t.id] = t
	return t
}

// Advance moves the clock forward and runs every timer that became due,
// in deadline order, on the calling goroutine.
func (m *Timers) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTimer
	for id, t := range m.timers {
		if t.at <= m.now {
			due = append(due, t)
			delete(m.timers, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of armed timers.
func (m *Timers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
