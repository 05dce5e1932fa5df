package cache

import (
	"testing"
	"time"
)

func TestTTLExpires(t *testing.T) {
	current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewTTL[string, int](5*time.Minute, func() time.Time { return current })

	c.Set("2025-03", 42)
	if v, ok := c.Get("2025-03"); !ok || v != 42 {
		t.Fatalf("Get = %d, %v, want 42, true", v, ok)
	}

	current = current.Add(4 * time.Minute)
	if _, ok := c.Get("2025-03"); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get("2025-03"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestTTLKeysAreIndependent(t *testing.T) {
	c := NewTTL[string, int](time.Minute, nil)
	c.Set("2025-03", 1)
	c.Set("2025-04", 2)
	c.Invalidate("2025-03")

	if _, ok := c.Get("2025-03"); ok {
		t.Error("expected invalidated key to miss")
	}
	if v, ok := c.Get("2025-04"); !ok || v != 2 {
		t.Errorf("other period affected: %d, %v", v, ok)
	}

	c.Clear()
	if _, ok := c.Get("2025-04"); ok {
		t.Error("expected empty cache after Clear")
	}
}
