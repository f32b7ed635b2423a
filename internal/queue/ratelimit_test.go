package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock shared with the gate under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGateTryConsumesBucket(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	gate := NewGate(2, time.Minute, clk.Now)

	if !gate.Try() {
		t.Fatal("first Try() = false, want true")
	}
	if !gate.Try() {
		t.Fatal("second Try() = false, want true")
	}
	if gate.Try() {
		t.Fatal("third Try() = true, want false: bucket should be empty")
	}
}

func TestGateRefillsOverTime(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	gate := NewGate(2, time.Minute, clk.Now)

	gate.Try()
	gate.Try()
	if gate.Try() {
		t.Fatal("Try() on an empty bucket = true")
	}

	// One token refills per 30s at 2 calls/minute.
	clk.Advance(30 * time.Second)
	if !gate.Try() {
		t.Fatal("Try() after refill window = false, want true")
	}
	if gate.Try() {
		t.Fatal("Try() = true after consuming the single refilled token")
	}
}

func TestGateCapsAtBucketSize(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	gate := NewGate(3, time.Minute, clk.Now)

	// A long idle period must not bank more than the cap.
	clk.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		if !gate.Try() {
			t.Fatalf("Try() %d = false, want true", i)
		}
	}
	if gate.Try() {
		t.Fatal("Try() exceeded the bucket cap after idling")
	}
}

func TestGateIgnoresClockGoingBackwards(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	gate := NewGate(1, time.Minute, clk.Now)

	gate.Try()
	clk.Advance(-time.Hour)
	if gate.Try() {
		t.Fatal("Try() = true after the clock went backwards")
	}
}

func TestGateWaitReturnsOnCancel(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	gate := NewGate(1, time.Minute, clk.Now)
	gate.Try()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := gate.Wait(ctx); err == nil {
		t.Fatal("Wait() on an empty bucket returned nil before a refill")
	}
}

func TestGateWaitSucceedsWhenTokenAvailable(t *testing.T) {
	t.Parallel()

	gate := NewGate(1, time.Minute, nil)
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}
