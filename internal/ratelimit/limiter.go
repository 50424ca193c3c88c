// Package ratelimit paces calls to the external collaborators. Each
// collaborator gets a named lane with its own concurrency ceiling; a
// shared requests-per-second ceiling applies across all lanes. There is
// deliberately no retry logic here; fallback behavior lives in the
// suggestion tiers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Lane names for the external collaborators.
const (
	LaneCatalog    = "catalog"
	LaneSimilarity = "similarity"
	LaneTempo      = "tempo"
	LaneAI         = "ai"
)

// Task is one unit of rate-limited work.
type Task func(ctx context.Context) error

// Limiter enforces per-lane concurrency caps and a global rps ceiling.
type Limiter struct {
	lanes map[string]*semaphore.Weighted

	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// New builds a Limiter from lane concurrency caps and a global
// requests-per-second ceiling. A non-positive rps disables pacing.
func New(laneCaps map[string]int64, rps int) *Limiter {
	lanes := make(map[string]*semaphore.Weighted, len(laneCaps))
	for name, capacity := range laneCaps {
		if capacity < 1 {
			capacity = 1
		}
		lanes[name] = semaphore.NewWeighted(capacity)
	}
	l := &Limiter{lanes: lanes}
	if rps > 0 {
		l.interval = time.Second / time.Duration(rps)
	}
	return l
}

// DefaultLanes is the standard lane configuration: small per-provider
// ceilings so candidate enrichment can fan out without hammering any
// single API.
func DefaultLanes() map[string]int64 {
	return map[string]int64{
		LaneCatalog:    4,
		LaneSimilarity: 3,
		LaneTempo:      3,
		LaneAI:         1,
	}
}

// Execute runs the task inside the named lane, honoring the lane's
// concurrency cap and the global pacing ceiling.
func (l *Limiter) Execute(ctx context.Context, lane string, task Task) error {
	sem, ok := l.lanes[lane]
	if !ok {
		return fmt.Errorf("ratelimit: unknown lane %q", lane)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("ratelimit: acquire %s: %w", lane, err)
	}
	defer sem.Release(1)

	if err := l.pace(ctx); err != nil {
		return err
	}
	return task(ctx)
}

// ExecuteBatch runs tasks concurrently inside one lane and returns the
// first error. Each task still individually respects the lane cap and
// the global ceiling.
func (l *Limiter) ExecuteBatch(ctx context.Context, lane string, tasks []Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			return l.Execute(gctx, lane, task)
		})
	}
	return g.Wait()
}

// pace blocks until the global rps ceiling admits another request.
func (l *Limiter) pace(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("ratelimit: pacing canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
