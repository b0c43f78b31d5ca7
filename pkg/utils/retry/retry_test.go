package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/utils/retry"
)

var fast = retry.Policy{
	Timeout:    time.Second,
	MaxRetries: 2,
	Initial:    time.Millisecond,
	Max:        2 * time.Millisecond,
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, calls, 3)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, "broken", func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 3)
}

func TestDoStopsOnPermanent(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := retry.Do(context.Background(), fast, "permanent", func(ctx context.Context) error {
		calls++
		return retry.Permanent(sentinel)
	})
	gt.Equal(t, calls, 1)
	gt.True(t, errors.Is(err, sentinel))
}

func TestDoBoundsAttemptWithTimeout(t *testing.T) {
	p := fast
	p.Timeout = 10 * time.Millisecond
	p.MaxRetries = 0

	err := retry.Do(context.Background(), p, "hang", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	gt.True(t, errors.Is(err, context.DeadlineExceeded))
}
