package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWaitUntil(t *testing.T) {
	t.Run("ReturnsTrueOncePredicateHolds", func(t *testing.T) {
		var calls atomic.Int32
		ok, err := WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
			return calls.Add(1) >= 3, nil
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})

	t.Run("TimesOutWithoutError", func(t *testing.T) {
		start := time.Now()
		ok, err := WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
			return false, nil
		}, 80*time.Millisecond, 10*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Less(t, time.Since(start), time.Second, "wait must be bounded by its timeout")
	})

	t.Run("PredicateErrorsAreRetried", func(t *testing.T) {
		var calls atomic.Int32
		ok, err := WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
			if calls.Add(1) < 2 {
				return false, schemas.ErrNodeVanished
			}
			return true, nil
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CancellationIsReported", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		time.AfterFunc(20*time.Millisecond, cancel)

		ok, err := WaitUntil(ctx, func(ctx context.Context) (bool, error) {
			return false, nil
		}, 5*time.Second, 5*time.Millisecond)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 5*time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
}

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "session"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key, "cdp")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()
		assert.Equal(t, "cdp", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CanceledByPrimary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()
		cancelPrimary()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CanceledBySecondaryDeadline", func(t *testing.T) {
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancelSecondary()
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.True(t, errors.Is(context.Cause(combined), context.DeadlineExceeded))
	})

	t.Run("DetachIgnoresCancellation", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.WithValue(context.Background(), key, "cdp"))
		cancel()
		detached := Detach(parent)
		assert.NoError(t, detached.Err())
		assert.Equal(t, "cdp", detached.Value(key))
	})
}

func TestDecodeDescription(t *testing.T) {
	d, err := DecodeDescription([]byte(`{"tag":"INPUT","attributes":{"type":"email"},"path":"html > body:nth-of-type(1) > input:nth-of-type(1)","text":""}`))
	require.NoError(t, err)
	assert.Equal(t, "input", d.Tag)
	assert.Equal(t, "email", d.Attributes["type"])
	assert.Equal(t, "html > body:nth-of-type(1) > input:nth-of-type(1)", d.Path)

	_, err = DecodeDescription([]byte("null"))
	assert.ErrorIs(t, err, schemas.ErrNodeVanished)

	_, err = DecodeDescription([]byte("{"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, schemas.ErrNodeVanished)
}

func TestScriptBuilders(t *testing.T) {
	assert.Equal(t, `document.querySelectorAll("[data-test-id=\"x\"]")[2]`, QueryNthJS(`[data-test-id="x"]`, 2))
	assert.Equal(t, "(f)(a, b)", Invoke("f", "a", "b"))
	assert.Equal(t, `"it's"`, JSString("it's"))
}
