package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPollExhausted is returned when the attempt budget runs out.
var ErrPollExhausted = errors.New("poll: attempts exhausted")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Poller is a bounded fixed-delay loop: sleep Interval, then check, at most Attempts times.
type Poller struct {
	Interval time.Duration
	Attempts int
	Sleep    Sleeper
}

// DefaultPoller waits up to 60 seconds: 30 checks, 2 seconds apart.
func DefaultPoller() Poller {
	return Poller{Interval: 2 * time.Second, Attempts: 30, Sleep: ContextSleep}
}

// Wait calls check until it reports ready. Check errors count as not ready.
// It returns the number of checks performed.
func (p Poller) Wait(ctx context.Context, check func(context.Context) (bool, error)) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return attempt - 1, err
		}
		ready, err := check(ctx)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("readiness check failed, treating as not ready")
			continue
		}
		if ready {
			return attempt, nil
		}
	}
	return attempts, ErrPollExhausted
}

func ContextSleep(ctx context.Context, d time.Duration) error {
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
