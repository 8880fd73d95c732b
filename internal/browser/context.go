package browser

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of primary and is
// canceled when either primary or secondary is done. chromedp stores the
// browser connection in the session context, so operations must derive from
// it while honoring the caller's deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Detach returns a context that keeps the values of ctx but is never
// canceled by it. Used for teardown that must outlive an aborted scan.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
