package template

import (
	"context"
	"testing"
	"time"

	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDelayDuration(t *testing.T) {
	g := newTestGenerator()

	assert.Equal(t, time.Duration(0), g.DelayDuration(nil))
	assert.Equal(t, 150*time.Millisecond, g.DelayDuration(models.FixedDelay(150)))
	assert.Equal(t, time.Duration(0), g.DelayDuration(models.FixedDelay(-5)))
	assert.Equal(t, 30*time.Millisecond, g.DelayDuration(&models.Delay{Type: "fixed", Min: 30, Max: 90}))
	assert.Equal(t, 30*time.Millisecond, g.DelayDuration(&models.Delay{Min: 30, Max: 90}))

	for i := 0; i < 100; i++ {
		d := g.DelayDuration(&models.Delay{Type: "random", Min: 10, Max: 20})
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestDelayDuration_Network(t *testing.T) {
	g := newTestGenerator()

	fast := 0
	const draws = 2000
	for i := 0; i < draws; i++ {
		d := g.DelayDuration(&models.Delay{Type: "network"})
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 5000*time.Millisecond)
		if d <= 200*time.Millisecond {
			fast++
		}
	}

	// roughly 70% land in the fastest bucket
	ratio := float64(fast) / draws
	assert.InDelta(t, 0.70, ratio, 0.07)
}

func TestApplyDelay_Waits(t *testing.T) {
	g := newTestGenerator()

	start := time.Now()
	d, err := g.ApplyDelay(context.Background(), models.FixedDelay(30))
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, d)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestApplyDelay_Cancelled(t *testing.T) {
	g := newTestGenerator()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.ApplyDelay(ctx, models.FixedDelay(5000))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestApplyDelay_None(t *testing.T) {
	g := newTestGenerator()
	d, err := g.ApplyDelay(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, d)
}
