package ratelimit

import (
	"context"
	"time"
)

const (
	defaultMaxRate = 20
	window         = time.Second
)

var _ Limiter = (*SlidingWindow)(nil)

// SlidingWindow admits at most maxRate acquisitions in any rolling one-second
// window. Acquire calls are serialized; a caller that has to wait keeps the
// gate while sleeping so admissions stay in arrival order.
type SlidingWindow struct {
	maxRate    int
	gate       chan struct{}
	timestamps []time.Time
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewSlidingWindow(maxRate int) *SlidingWindow {
	return newSlidingWindow(maxRate, time.Now, sleepWithContext)
}

func newSlidingWindow(
	maxRate int,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) *SlidingWindow {
	if maxRate <= 0 {
		maxRate = defaultMaxRate
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SlidingWindow{
		maxRate:    maxRate,
		gate:       make(chan struct{}, 1),
		timestamps: make([]time.Time, 0, maxRate),
		now:        nowFn,
		sleep:      sleepFn,
	}
}

func (l *SlidingWindow) MaxRate() int { return l.maxRate }

func (l *SlidingWindow) Acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case l.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.gate }()

	now := l.now()
	l.prune(now)

	for len(l.timestamps) >= l.maxRate {
		wait := l.timestamps[0].Add(window).Sub(now)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		now = l.now()
		l.prune(now)
	}

	l.timestamps = append(l.timestamps, now)
	return nil
}

// prune drops admissions that fell out of the window ending at now.
func (l *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-window)
	drop := 0
	for drop < len(l.timestamps) && !l.timestamps[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		l.timestamps = l.timestamps[drop:]
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
