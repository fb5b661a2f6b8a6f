package service

import (
	"context"

	"github.com/paysync/backend/internal/domain"
	"github.com/sirupsen/logrus"
)

// Notifier is the outbound notification collaborator. Calls are best-effort:
// the reconciler never lets a notification failure fail a webhook handler.
type Notifier interface {
	SendWelcome(ctx context.Context, userID string, sub *domain.Subscription) error
}

// LogNotifier is a Notifier that only records the notification. It stands in
// until a real mail transport is wired up.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendWelcome(ctx context.Context, userID string, sub *domain.Subscription) error {
	n.log.WithFields(logrus.Fields{
		"user_id":         userID,
		"subscription_id": sub.ID,
		"plan":            sub.Plan,
	}).Info("welcome notification")
	return nil
}
