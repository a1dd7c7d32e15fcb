package provision

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a network strategy is re-run.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy waits 1s then 2s between three attempts.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second}

// RetryController runs an operation under a RetryPolicy. Only network
// strategies get more than one attempt.
type RetryController struct {
	Policy RetryPolicy
	// Timer is swapped in tests so the schedule can be observed without sleeping.
	Timer backoff.Timer
}

func NewRetryController(p RetryPolicy) *RetryController {
	return &RetryController{Policy: p}
}

func (rc *RetryController) backOff(ctx context.Context, network bool) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     rc.Policy.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         rc.Policy.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	retries := 0
	if network && rc.Policy.Attempts > 1 {
		retries = rc.Policy.Attempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Run calls op until it succeeds, returns a permanent error, or the budget
// is spent. op receives the zero-based retry index. onWait sees every delay.
func (rc *RetryController) Run(ctx context.Context, network bool, op func(retry int) error, onWait func(retry int, wait time.Duration, err error)) error {
	retry := 0
	operation := func() error {
		err := op(retry)
		retry++
		return err
	}
	notify := func(err error, wait time.Duration) {
		if onWait != nil {
			onWait(retry, wait, err)
		}
	}
	return backoff.RetryNotifyWithTimer(operation, rc.backOff(ctx, network), notify, rc.Timer)
}
