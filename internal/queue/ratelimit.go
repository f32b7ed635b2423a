package queue

import (
	"context"
	"sync"
	"time"
)

// Gate is a token-bucket cap on AI backend calls: at most `calls` within
// any `window`, refilled continuously. It is independent of the worker
// pool size, so configured concurrency can never exceed a provider's rate
// ceiling even transiently.
type Gate struct {
	mu    sync.Mutex
	cap   float64
	level float64
	rate  float64 // tokens per second
	last  time.Time
	clk   func() time.Time
}

// NewGate builds a gate allowing `calls` per `window`. A nil clock uses
// time.Now.
func NewGate(calls int, window time.Duration, clk func() time.Time) *Gate {
	if clk == nil {
		clk = time.Now
	}
	if calls < 1 {
		calls = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Gate{
		cap:   float64(calls),
		level: float64(calls),
		rate:  float64(calls) / window.Seconds(),
		last:  clk(),
		clk:   clk,
	}
}

// Try consumes one call slot without blocking.
func (g *Gate) Try() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refill()
	if g.level < 1 {
		return false
	}
	g.level--
	return true
}

// Wait blocks until a call slot is available or ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	const minSleep = 10 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		g.mu.Lock()
		g.refill()
		if g.level >= 1 {
			g.level--
			g.mu.Unlock()
			return nil
		}
		deficit := 1 - g.level
		g.mu.Unlock()

		sleep := time.Duration(deficit / g.rate * float64(time.Second))
		if sleep < minSleep {
			sleep = minSleep
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *Gate) refill() {
	now := g.clk()
	if now.Before(g.last) {
		// Clock went backwards; treat as no elapsed time.
		return
	}
	dt := now.Sub(g.last).Seconds()
	if dt <= 0 {
		return
	}
	g.level += dt * g.rate
	if g.level > g.cap {
		g.level = g.cap
	}
	g.last = now
}
