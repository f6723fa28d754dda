package template

import (
	"context"
	"time"

	"github.com/prasenjit/go-mockserver/internal/models"
)

type latencyBucket struct {
	weight int
	min    int
	max    int
}

// networkBuckets approximate real-world latency: mostly fast, with a tail.
var networkBuckets = []latencyBucket{
	{weight: 70, min: 50, max: 200},
	{weight: 20, min: 200, max: 800},
	{weight: 8, min: 800, max: 2000},
	{weight: 2, min: 2000, max: 5000},
}

const networkFallbackMs = 100

// DelayDuration computes how long a delay configuration waits.
func (g *Generator) DelayDuration(delay *models.Delay) time.Duration {
	if delay == nil {
		return 0
	}
	if delay.IsNumeric() {
		return clampMillis(delay.Millis)
	}

	switch delay.NormalizedType() {
	case models.DelayRandom:
		lo, hi := delay.Min, delay.Max
		if hi < lo {
			lo, hi = hi, lo
		}
		return clampMillis(g.faker.Number(lo, hi))
	case models.DelayNetwork:
		return clampMillis(g.networkLatency())
	default:
		return clampMillis(delay.Min)
	}
}

func (g *Generator) networkLatency() int {
	draw := g.faker.Number(1, 100)
	cumulative := 0
	for _, b := range networkBuckets {
		cumulative += b.weight
		if draw <= cumulative {
			return g.faker.Number(b.min, b.max)
		}
	}
	return networkFallbackMs
}

// ApplyDelay waits for the configured delay or until ctx is done.
// It returns the duration that was scheduled.
func (g *Generator) ApplyDelay(ctx context.Context, delay *models.Delay) (time.Duration, error) {
	d := g.DelayDuration(delay)
	if d <= 0 {
		return 0, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return d, nil
	case <-ctx.Done():
		return d, ctx.Err()
	}
}

func clampMillis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
