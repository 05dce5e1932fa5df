package scheduler_test

import (
	"testing"
	"time"

	"github.com/christopherklint97/sitehours/internal/scheduler"
	"github.com/christopherklint97/sitehours/internal/testfixtures"
)

func TestDebouncerRestartsOnSchedule(t *testing.T) {
	timers := testfixtures.NewTimers()
	d := scheduler.NewDebouncer(timers.AfterFunc)
	runs := 0

	d.Schedule(2*time.Second, func() { runs++ })
	timers.Advance(1500 * time.Millisecond)
	d.Schedule(2*time.Second, func() { runs++ })
	timers.Advance(1500 * time.Millisecond)

	if runs != 0 {
		t.Fatalf("runs = %d, want 0 before quiet period elapses", runs)
	}
	if timers.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", timers.Pending())
	}

	timers.Advance(time.Second)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if d.Pending() {
		t.Error("nothing should be pending after the task ran")
	}
}

func TestDebouncerCancelPending(t *testing.T) {
	timers := testfixtures.NewTimers()
	d := scheduler.NewDebouncer(timers.AfterFunc)
	runs := 0

	d.Schedule(2*time.Second, func() { runs++ })
	if !d.CancelPending() {
		t.Fatal("expected a pending task")
	}
	if d.CancelPending() {
		t.Error("second cancel should report nothing pending")
	}
	timers.Advance(5 * time.Second)
	if runs != 0 {
		t.Errorf("runs = %d, want 0", runs)
	}
}
