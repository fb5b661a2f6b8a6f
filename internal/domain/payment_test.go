package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		declineCode string
		want        FailureKind
	}{
		{"generic decline", "card_declined", "generic_decline", FailureCardDeclined},
		{"insufficient funds", "card_declined", "insufficient_funds", FailureInsufficientFunds},
		{"expired card", "expired_card", "", FailureExpiredCard},
		{"authentication", "authentication_required", "", FailureAuthentication},
		{"intent auth failure", "payment_intent_authentication_failure", "", FailureAuthentication},
		{"unknown code", "processing_error", "", FailureOther},
		{"empty", "", "", FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyFailure(tt.code, tt.declineCode, "msg")
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, "msg", got.Message)
		})
	}
}

func TestSubscriptionStatusTerminal(t *testing.T) {
	assert.True(t, SubscriptionCancelled.Terminal())
	for _, s := range []SubscriptionStatus{
		SubscriptionIncomplete,
		SubscriptionActive,
		SubscriptionPastDue,
		SubscriptionUnpaid,
	} {
		assert.False(t, s.Terminal(), "status %s", s)
	}
}
