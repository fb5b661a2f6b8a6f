package service

import (
	"errors"

	"github.com/paysync/backend/internal/domain"
)

// ErrUnmappedStatus is returned when the processor reports a subscription
// status outside the known vocabulary. The caller skips the transition and
// retains the previous local status instead of guessing.
var ErrUnmappedStatus = errors.New("unmapped processor status")

// processorStatuses is the total, explicit processor-status → local-status
// mapping. Anything not listed here is rejected as ErrUnmappedStatus.
var processorStatuses = map[string]domain.SubscriptionStatus{
	"active":     domain.SubscriptionActive,
	"past_due":   domain.SubscriptionPastDue,
	"canceled":   domain.SubscriptionCancelled,
	"unpaid":     domain.SubscriptionUnpaid,
	"incomplete": domain.SubscriptionIncomplete,
}

// MapProcessorStatus translates a processor subscription status into the
// local status enum.
func MapProcessorStatus(s string) (domain.SubscriptionStatus, error) {
	if mapped, ok := processorStatuses[s]; ok {
		return mapped, nil
	}
	return "", ErrUnmappedStatus
}

// ResolveUpdate decides the next local status for a subscription-updated
// event. It is pure: no I/O, no clock.
//
// apply=false means the row must not change: either the local state is
// terminal (CANCELLED never moves again) or the processor status could not
// be mapped (err is ErrUnmappedStatus in that case).
func ResolveUpdate(current domain.SubscriptionStatus, processorStatus string) (next domain.SubscriptionStatus, apply bool, err error) {
	if current.Terminal() {
		return current, false, nil
	}
	mapped, err := MapProcessorStatus(processorStatus)
	if err != nil {
		return current, false, err
	}
	return mapped, true, nil
}

// ResolveDunning decides the next status when a recurring payment fails.
// Only ACTIVE and PAST_DUE subscriptions move to PAST_DUE; everything else
// (terminal, incomplete, already unpaid) is left untouched.
func ResolveDunning(current domain.SubscriptionStatus) (next domain.SubscriptionStatus, apply bool) {
	switch current {
	case domain.SubscriptionActive, domain.SubscriptionPastDue:
		return domain.SubscriptionPastDue, current != domain.SubscriptionPastDue
	default:
		return current, false
	}
}

// ResolveRenewal decides the next status when a recurring payment succeeds.
// Any non-terminal subscription returns to ACTIVE with refreshed period
// bounds; a cancelled one stays cancelled.
func ResolveRenewal(current domain.SubscriptionStatus) (next domain.SubscriptionStatus, apply bool) {
	if current.Terminal() {
		return current, false
	}
	return domain.SubscriptionActive, true
}
