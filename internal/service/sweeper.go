package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// staleIncompleteAfter mirrors the processor's own incomplete-subscription
// expiry window.
const staleIncompleteAfter = 24 * time.Hour

// Sweeper periodically cancels incomplete subscriptions whose payment
// handshake never finished. The processor expires those on its side too;
// the sweep keeps local rows from lingering if the corresponding webhook
// was lost.
type Sweeper struct {
	subs SubscriptionStore
	log  *logrus.Logger
	cron *cron.Cron
}

// NewSweeper creates a Sweeper.
func NewSweeper(subs SubscriptionStore, log *logrus.Logger) *Sweeper {
	return &Sweeper{subs: subs, log: log, cron: cron.New()}
}

// Start schedules the hourly sweep.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.subs.CancelStaleIncomplete(ctx, time.Now().Add(-staleIncompleteAfter))
	if err != nil {
		s.log.WithError(err).Error("stale subscription sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("count", n).Info("cancelled stale incomplete subscriptions")
	}
}
