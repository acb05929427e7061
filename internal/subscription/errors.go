package subscription

import "errors"

var (
	// ErrNoActiveSubscription means the worker has no active plan. Acceptance
	// is denied in this case; quota enforcement would be meaningless otherwise.
	ErrNoActiveSubscription = errors.New("subscription: no active subscription")

	// ErrQuotaExceeded means today's acceptance count has reached the plan's
	// daily limit.
	ErrQuotaExceeded = errors.New("subscription: daily appointment limit reached")
)
