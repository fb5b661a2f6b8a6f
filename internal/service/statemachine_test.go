package service

import (
	"testing"

	"github.com/paysync/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProcessorStatus(t *testing.T) {
	tests := []struct {
		processor string
		want      domain.SubscriptionStatus
	}{
		{"active", domain.SubscriptionActive},
		{"past_due", domain.SubscriptionPastDue},
		{"canceled", domain.SubscriptionCancelled},
		{"unpaid", domain.SubscriptionUnpaid},
		{"incomplete", domain.SubscriptionIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.processor, func(t *testing.T) {
			got, err := MapProcessorStatus(tt.processor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapProcessorStatusRejectsUnknown(t *testing.T) {
	for _, s := range []string{"trialing", "incomplete_expired", "paused", "cancelled", ""} {
		t.Run(s, func(t *testing.T) {
			_, err := MapProcessorStatus(s)
			assert.ErrorIs(t, err, ErrUnmappedStatus)
		})
	}
}

func TestResolveUpdate(t *testing.T) {
	next, apply, err := ResolveUpdate(domain.SubscriptionActive, "past_due")
	require.NoError(t, err)
	assert.True(t, apply)
	assert.Equal(t, domain.SubscriptionPastDue, next)
}

func TestResolveUpdateTerminalNeverMoves(t *testing.T) {
	for _, processor := range []string{"active", "past_due", "incomplete", "unpaid", "canceled"} {
		next, apply, err := ResolveUpdate(domain.SubscriptionCancelled, processor)
		require.NoError(t, err)
		assert.False(t, apply)
		assert.Equal(t, domain.SubscriptionCancelled, next)
	}
}

func TestResolveUpdateUnmappedRetainsCurrent(t *testing.T) {
	next, apply, err := ResolveUpdate(domain.SubscriptionActive, "trialing")
	assert.ErrorIs(t, err, ErrUnmappedStatus)
	assert.False(t, apply)
	assert.Equal(t, domain.SubscriptionActive, next)
}

func TestResolveDunning(t *testing.T) {
	tests := []struct {
		current domain.SubscriptionStatus
		next    domain.SubscriptionStatus
		apply   bool
	}{
		{domain.SubscriptionActive, domain.SubscriptionPastDue, true},
		{domain.SubscriptionPastDue, domain.SubscriptionPastDue, false},
		{domain.SubscriptionIncomplete, domain.SubscriptionIncomplete, false},
		{domain.SubscriptionUnpaid, domain.SubscriptionUnpaid, false},
		{domain.SubscriptionCancelled, domain.SubscriptionCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.current), func(t *testing.T) {
			next, apply := ResolveDunning(tt.current)
			assert.Equal(t, tt.apply, apply)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestResolveRenewal(t *testing.T) {
	for _, s := range []domain.SubscriptionStatus{
		domain.SubscriptionIncomplete,
		domain.SubscriptionActive,
		domain.SubscriptionPastDue,
		domain.SubscriptionUnpaid,
	} {
		next, apply := ResolveRenewal(s)
		assert.True(t, apply, "status %s", s)
		assert.Equal(t, domain.SubscriptionActive, next)
	}

	next, apply := ResolveRenewal(domain.SubscriptionCancelled)
	assert.False(t, apply)
	assert.Equal(t, domain.SubscriptionCancelled, next)
}
