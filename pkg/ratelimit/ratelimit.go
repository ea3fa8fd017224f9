package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Range is an inclusive interval a random delay is drawn from.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Draw returns a uniformly distributed duration in [Min, Max]. A reversed
// range is swapped; a zero range yields zero.
func (r Range) Draw(rnd *rand.Rand) time.Duration {
	lo, hi := r.Min, r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rnd.Int63n(int64(hi-lo)+1))
}

// Delay records the sleeps a Pacer applied before one request.
type Delay struct {
	PreWait time.Duration
	Jitter  time.Duration
}

// Pacer spaces requests out with a randomized multi-second pre-request
// delay followed by a short start jitter. It is safe for concurrent use.
type Pacer struct {
	preWait Range
	jitter  Range

	mu  sync.Mutex
	rnd *rand.Rand

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer. Zero ranges disable the corresponding sleep.
func NewPacer(preWait, jitter Range) *Pacer {
	return &Pacer{
		preWait: preWait,
		jitter:  jitter,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepContext,
	}
}

// Wait sleeps for a random pre-wait and then a random jitter, or until the
// context is canceled. It returns the delays it drew.
func (p *Pacer) Wait(ctx context.Context) (Delay, error) {
	if p == nil {
		return Delay{}, nil
	}

	p.mu.Lock()
	d := Delay{
		PreWait: p.preWait.Draw(p.rnd),
		Jitter:  p.jitter.Draw(p.rnd),
	}
	p.mu.Unlock()

	if err := p.sleep(ctx, d.PreWait); err != nil {
		return d, err
	}
	if err := p.sleep(ctx, d.Jitter); err != nil {
		return d, err
	}
	return d, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
