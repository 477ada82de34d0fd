package pacing

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer waits base plus a random jitter on every Pause. When minInterval is
// set, consecutive pauses are also held at least that far apart.
type Pacer struct {
	base    time.Duration
	jitter  time.Duration
	limiter *rate.Limiter
}

func New(base, jitter, minInterval time.Duration) *Pacer {
	p := &Pacer{base: max(base, 0), jitter: max(jitter, 0)}
	if minInterval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return p
}

// Delay draws the next politeness delay.
func (p *Pacer) Delay() time.Duration {
	if p.jitter == 0 {
		return p.base
	}
	return p.base + rand.N(p.jitter+1)
}

func (p *Pacer) Pause(ctx context.Context) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
