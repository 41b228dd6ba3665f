package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type StaleReleaser interface {
	ReleaseStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

type CacheSweeper interface {
	Sweep() int
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type AttemptPruner interface {
	PruneFinished(cutoff time.Time) int
}

type Config struct {
	ReservationMaxAge  time.Duration
	BatchLimit         int
	SweepInterval      time.Duration
	CacheSweepInterval time.Duration
	RefreshInterval    time.Duration
	AttemptRetention   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReservationMaxAge:  30 * time.Minute,
		BatchLimit:         500,
		SweepInterval:      5 * time.Minute,
		CacheSweepInterval: 5 * time.Minute,
		RefreshInterval:    10 * time.Minute,
		AttemptRetention:   time.Hour,
	}
}

// Service is the safety net behind the checkout flow. cache and pruner may be
// nil when it runs outside the API process.
type Service struct {
	res        StaleReleaser
	cache      CacheSweeper
	pruner     AttemptPruner
	refreshers []Refresher
	cfg        Config
	log        *zap.Logger
	now        func() time.Time
}

// NewService takes refreshers in the order they must run; the warehouse
// registry goes before the pincode directory that reads its coverage.
func NewService(res StaleReleaser, cache CacheSweeper, pruner AttemptPruner, cfg Config, log *zap.Logger, refreshers ...Refresher) *Service {
	return &Service{
		res:        res,
		cache:      cache,
		pruner:     pruner,
		refreshers: refreshers,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// ReleaseStaleReservations освобождает зависшие held-резервы старше ReservationMaxAge
func (s *Service) ReleaseStaleReservations(ctx context.Context) error {
	n, err := s.res.ReleaseStale(ctx, s.cfg.ReservationMaxAge, s.cfg.BatchLimit)
	if err != nil {
		s.log.Error("failed to release stale reservations", zap.Int("released", n), zap.Error(err))
		return err
	}
	if n > 0 {
		s.log.Info("released stale reservations", zap.Int("count", n))
	}
	return nil
}

// EvictExpiredCache удаляет просроченные записи кэша доставки и забытые попытки checkout
func (s *Service) EvictExpiredCache(ctx context.Context) error {
	if s.cache != nil {
		if n := s.cache.Sweep(); n > 0 {
			s.log.Info("evicted expired delivery cache entries", zap.Int("count", n))
		}
	}
	if s.pruner != nil && s.cfg.AttemptRetention > 0 {
		if n := s.pruner.PruneFinished(s.now().Add(-s.cfg.AttemptRetention)); n > 0 {
			s.log.Info("pruned finished checkout attempts", zap.Int("count", n))
		}
	}
	return ctx.Err()
}

// RefreshReferenceData перечитывает склады и пинкоды из хранилища
func (s *Service) RefreshReferenceData(ctx context.Context) error {
	for _, r := range s.refreshers {
		if err := r.Refresh(ctx); err != nil {
			s.log.Error("reference refresh failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// RunAll выполняет все задачи; ошибки не прерывают остальные задачи
func (s *Service) RunAll(ctx context.Context) error {
	s.log.Info("starting full sweep")
	err := errors.Join(
		s.RefreshReferenceData(ctx),
		s.ReleaseStaleReservations(ctx),
		s.EvictExpiredCache(ctx),
	)
	if err != nil {
		return err
	}
	s.log.Info("full sweep completed")
	return nil
}
