package notification

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the daily digest on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	digest *Digest
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(digest *Digest, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		digest: digest,
		log:    log.With(zap.String("component", "notification.scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule registers the digest job; expr is a standard five-field cron expression.
func (s *Scheduler) Schedule(expr string) error {
	_, err := s.cron.AddFunc(expr, s.runDigest)
	if err != nil {
		return err
	}
	s.log.Info("daily digest scheduled", zap.String("schedule", expr))
	return nil
}

func (s *Scheduler) runDigest() {
	if _, err := s.digest.SendDailyDigest(s.ctx); err != nil {
		s.log.Error("daily digest run failed", zap.Error(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels a running digest and waits for it to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
