package alert

import (
	"context"
	"net/http"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ClipFinance/whale-monitor/retry"
	"github.com/pkg/errors"
)

const (
	// PolicyBestEffort names the BestEffort delivery policy.
	PolicyBestEffort = "best-effort"
	// PolicyRetry names the Retrying delivery policy.
	PolicyRetry = "retry"
)

// Notifier sends a single alert to an external channel.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, msg types.AlertMessage) error
}

// DeliveryPolicy decides how many times a notifier is tried for one alert.
type DeliveryPolicy interface {
	Name() string
	Deliver(ctx context.Context, notifier Notifier, msg types.AlertMessage) error
}

// BestEffort tries the notifier once.
type BestEffort struct{}

// Name returns PolicyBestEffort.
func (BestEffort) Name() string { return PolicyBestEffort }

// Deliver makes a single Notify call and returns its error.
func (BestEffort) Deliver(ctx context.Context, notifier Notifier, msg types.AlertMessage) error {
	return notifier.Notify(ctx, msg)
}

// Retrying retries transport failures, 5xx and 429 answers.
// Other 4xx answers are not retried since the request itself was rejected.
type Retrying struct {
	policy retry.Policy
}

// NewRetrying creates a retrying policy with a fixed delay between attempts.
func NewRetrying(attempts int, delay time.Duration) *Retrying {
	policy := retry.Fixed(attempts, delay)
	policy.Classify = classifyDeliveryError
	return &Retrying{policy: policy}
}

// Name returns PolicyRetry.
func (r *Retrying) Name() string { return PolicyRetry }

// Deliver calls Notify until it succeeds, a rejection is not retryable or attempts run out.
func (r *Retrying) Deliver(ctx context.Context, notifier Notifier, msg types.AlertMessage) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return notifier.Notify(ctx, msg)
	})
}

func classifyDeliveryError(err error) retry.Class {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests {
			return retry.Retryable
		}
		return retry.Fatal
	}
	return retry.Retryable
}

// NewDeliveryPolicy returns the policy registered under name.
//
// Parameters:
// - name: best-effort or retry.
// - attempts: total attempts for the retry policy.
// - delay: the wait between retry attempts.
//
// Returns:
// - DeliveryPolicy: the policy.
// - error: ErrInvalidConfig if name is unknown.
func NewDeliveryPolicy(name string, attempts int, delay time.Duration) (DeliveryPolicy, error) {
	switch name {
	case "", PolicyBestEffort:
		return BestEffort{}, nil
	case PolicyRetry:
		return NewRetrying(attempts, delay), nil
	default:
		return nil, errors.Wrapf(commonerrors.ErrInvalidConfig, "unknown delivery policy %q", name)
	}
}
