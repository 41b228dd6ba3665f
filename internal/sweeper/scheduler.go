package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	svc    *Service
	log    *zap.Logger
	stopCh chan struct{}
}

func NewScheduler(svc *Service, log *zap.Logger) *Scheduler {
	return &Scheduler{
		svc:    svc,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Start запускает планировщик задач
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting sweeper scheduler")

	go s.loop(ctx, "stale reservations", s.svc.cfg.SweepInterval, true, s.svc.ReleaseStaleReservations)
	go s.loop(ctx, "cache eviction", s.svc.cfg.CacheSweepInterval, false, s.svc.EvictExpiredCache)
	go s.loop(ctx, "reference refresh", s.svc.cfg.RefreshInterval, false, s.svc.RefreshReferenceData)
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	s.log.Info("stopping sweeper scheduler")
	close(s.stopCh)
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, runNow bool, job func(context.Context) error) {
	if every <= 0 {
		s.log.Info("sweeper job disabled", zap.String("job", name))
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// Выполняем сразу при старте
	if runNow {
		if err := job(ctx); err != nil {
			s.log.Error("initial sweeper job failed", zap.String("job", name), zap.Error(err))
		}
	}

	for {
		select {
		case <-ticker.C:
			if err := job(ctx); err != nil {
				s.log.Error("sweeper job failed", zap.String("job", name), zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info("sweeper job stopped", zap.String("job", name))
			return
		case <-ctx.Done():
			s.log.Info("sweeper job cancelled", zap.String("job", name))
			return
		}
	}
}

// RunOnceNow выполняет все задачи немедленно
func (s *Scheduler) RunOnceNow(ctx context.Context) error {
	return s.svc.RunAll(ctx)
}
