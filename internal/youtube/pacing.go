package youtube

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	// DefaultFloorInterval is the minimum time between polls regardless of
	// the server's hint; it keeps a zero or absent hint from tight-looping.
	DefaultFloorInterval = 1 * time.Second

	backoffInitial    = 1 * time.Second
	backoffMax        = 30 * time.Second
	defaultMaxRetries = 5
)

// engine governs one source's polling cadence: hint-driven sleeps with a
// floor for live chat, a virtual clock for replay, exponential backoff under
// transient failure. It is owned by exactly one source goroutine and is
// never shared.
type engine struct {
	mode    Mode
	floor   time.Duration
	limiter *rate.Limiter

	retry      *backoff.ExponentialBackOff
	retries    int
	maxRetries int
	// A malformed response earns one free immediate retry per streak before
	// failures start counting against the budget.
	malformedRetried bool

	// Replay virtual clock: wall time when the first replayed action was
	// seen, and that action's video offset.
	seeded     bool
	wallStart  time.Time
	baseOffset time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newEngine(mode Mode, floor time.Duration) *engine {
	if floor <= 0 {
		floor = DefaultFloorInterval
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = backoffInitial
	retry.MaxInterval = backoffMax
	retry.Reset()
	// Drain the limiter's initial token; the floor applies from the very
	// first poll, not the second.
	limiter := rate.NewLimiter(rate.Every(floor), 1)
	limiter.Allow()
	return &engine{
		mode:       mode,
		floor:      floor,
		limiter:    limiter,
		retry:      retry,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// setMode reconfigures the engine when the endpoint switches continuation
// modes mid-stream (live chat transitioning to archived). The virtual clock
// reseeds at the next replayed action.
func (e *engine) setMode(mode Mode) {
	if e.mode == mode {
		return
	}
	e.mode = mode
	e.seeded = false
}

// waitNext blocks until the next poll may be issued: at least
// max(hint, floor) after the previous poll completed. Replay mode ignores the
// hint (pacing happens per-message in release) but still honors the floor.
// The limiter backstops the sleep so no code path can poll faster than the
// floor.
func (e *engine) waitNext(ctx context.Context, hint time.Duration) error {
	delay := e.floor
	if e.mode == Live && hint > delay {
		delay = hint
	}
	if err := e.sleep(ctx, delay); err != nil {
		return err
	}
	return e.limiter.Wait(ctx)
}

// release blocks until the virtual clock reaches the given video offset.
// The clock is seeded by the first released message and advances with wall
// time, reproducing original chat pacing; a message is never released early.
func (e *engine) release(ctx context.Context, offset time.Duration) error {
	if e.mode != Replay {
		return nil
	}
	if !e.seeded {
		e.seeded = true
		e.wallStart = e.now()
		e.baseOffset = offset
	}
	due := e.wallStart.Add(offset - e.baseOffset)
	if d := due.Sub(e.now()); d > 0 {
		return e.sleep(ctx, d)
	}
	return nil
}

// pollSucceeded resets the failure budget.
func (e *engine) pollSucceeded() {
	e.retries = 0
	e.malformedRetried = false
	e.retry.Reset()
}

// pollFailed reports a retryable poll error and returns the delay before the
// next attempt. retry=false means the budget is exhausted and the source
// must terminate.
func (e *engine) pollFailed(err *PollError) (delay time.Duration, retry bool) {
	if err.Kind == MalformedResponse && !e.malformedRetried {
		// Transient provider-side decode glitches are common; retry once
		// immediately before the backoff budget is touched.
		e.malformedRetried = true
		return 0, true
	}
	e.retries++
	if e.retries >= e.maxRetries {
		return 0, false
	}
	return e.retry.NextBackOff(), true
}
