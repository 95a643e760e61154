package transport

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between outbound requests across
// however many workers share it.
type Pacer struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func NewPacer(interval time.Duration) *Pacer {
	if interval < 0 {
		interval = 0
	}
	return &Pacer{interval: interval}
}

// Wait blocks until the caller's turn, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval == 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	scheduled := now
	if p.nextAllowedAt.After(now) {
		scheduled = p.nextAllowedAt
	}
	p.nextAllowedAt = scheduled.Add(p.interval)
	p.mu.Unlock()

	sleep := time.Until(scheduled)
	if sleep <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
