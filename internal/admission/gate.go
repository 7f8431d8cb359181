package admission

import (
	"context"
	"time"

	"poe2openai/internal/core"

	"golang.org/x/sync/semaphore"
)

// Gate spaces admitted calls at least minInterval apart across the whole process.
// Callers that arrive too early are delayed, never rejected.
type Gate struct {
	sem        *semaphore.Weighted
	lastServed time.Time
	now        func() time.Time
}

// New creates a gate whose first call is admitted without delay.
func New() *Gate {
	return &Gate{
		sem:        semaphore.NewWeighted(1),
		lastServed: time.Now().Add(-core.AdmissionSafetyMargin),
		now:        time.Now,
	}
}

// Admit blocks until the caller may proceed and returns how long it waited.
// The only error is ctx ending while queued or delayed; the gate state is then unchanged.
func (g *Gate) Admit(ctx context.Context, minInterval time.Duration) (time.Duration, error) {
	if minInterval <= 0 {
		return 0, nil
	}

	start := g.now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return g.now().Sub(start), err
	}
	defer g.sem.Release(1)

	if remaining := minInterval - g.now().Sub(g.lastServed); remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return g.now().Sub(start), ctx.Err()
		}
	}

	g.lastServed = g.now()
	return g.lastServed.Sub(start), nil
}
