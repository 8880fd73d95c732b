package browser

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// DefaultPollInterval is used when a caller passes a non positive interval.
const DefaultPollInterval = 100 * time.Millisecond

// WaitUntil polls predicate at most once per interval until it reports true
// or timeout elapses. A timeout yields (false, nil); cancellation of ctx
// yields ctx's error. Predicate errors are treated as "not yet", since reads
// commonly fail while a document is being replaced.
func WaitUntil(ctx context.Context, predicate schemas.Predicate, timeout, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if ok, err := predicate(waitCtx); err == nil && ok {
			return true, nil
		}
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// The limiter refuses to wait past the deadline; give the
			// predicate one last look before reporting the timeout.
			if waitCtx.Err() == nil {
				if ok, perr := predicate(waitCtx); perr == nil && ok {
					return true, nil
				}
			}
			return false, nil
		}
	}
}
