package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anoa.com/tutorhub/internal/modules/dashboard/dto"
	dashboardRepo "anoa.com/tutorhub/internal/modules/dashboard/repository"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/cache"
	"anoa.com/tutorhub/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	UrgentCountsKey        = "dashboard:urgent_actions"
	DefaultUrgentCountsTTL = 300 * time.Second

	refreshTimeout = 10 * time.Second
)

type DashboardService interface {
	// GetUrgentCounts serves the cached snapshot, recomputing it on a miss.
	GetUrgentCounts(ctx context.Context) (*dto.UrgentActionsSnapshot, error)
	InvalidateUrgentCounts(ctx context.Context) error
}

type dashboardService struct {
	source dashboardRepo.CountSource
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
	group  singleflight.Group
}

func NewDashboardService(source dashboardRepo.CountSource, store cache.Store, ttl time.Duration, logger *zap.Logger) DashboardService {
	if ttl <= 0 {
		ttl = DefaultUrgentCountsTTL
	}
	return &dashboardService{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *dashboardService) GetUrgentCounts(ctx context.Context) (*dto.UrgentActionsSnapshot, error) {
	if snap, ok := s.cached(ctx); ok {
		metrics.RecordUrgentCountsLookup("hit")
		return snap, nil
	}
	metrics.RecordUrgentCountsLookup("miss")

	// Callers in this process share one recomputation. The leader's
	// cancellation must not fail the others.
	v, err, _ := s.group.Do(UrgentCountsKey, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})
	if err != nil {
		return nil, err
	}

	snap := *v.(*dto.UrgentActionsSnapshot)
	return &snap, nil
}

func (s *dashboardService) cached(ctx context.Context) (*dto.UrgentActionsSnapshot, bool) {
	raw, err := s.store.Get(ctx, UrgentCountsKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			metrics.RecordUrgentCountsLookup("error")
			s.logger.Warn("urgent counts cache read failed, recomputing", zap.Error(err))
		}
		return nil, false
	}

	var snap dto.UrgentActionsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("discarding unreadable urgent counts snapshot", zap.Error(err))
		return nil, false
	}
	return &snap, true
}

func (s *dashboardService) refresh(ctx context.Context) (*dto.UrgentActionsSnapshot, error) {
	start := time.Now()
	defer func() { metrics.RecordUrgentCountsRefresh(time.Since(start)) }()

	snap := &dto.UrgentActionsSnapshot{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.WithdrawalRequests, err = s.source.CountPendingPayouts(gctx)
		if err != nil {
			err = fmt.Errorf("count pending payouts: %w", err)
		}
		return err
	})
	g.Go(func() (err error) {
		snap.TeacherApplications, err = s.source.CountPendingVerifications(gctx)
		if err != nil {
			err = fmt.Errorf("count pending verifications: %w", err)
		}
		return err
	})
	g.Go(func() (err error) {
		snap.PendingSessions, err = s.source.CountPendingSessions(gctx)
		if err != nil {
			err = fmt.Errorf("count pending sessions: %w", err)
		}
		return err
	})
	g.Go(func() (err error) {
		snap.ReportedDisputes, err = s.source.CountReportedDisputes(gctx)
		if err != nil {
			err = fmt.Errorf("count reported disputes: %w", err)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("urgent counts refresh failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", apperror.ErrCacheRefresh, err)
	}
	snap.GeneratedAt = s.now()

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %w", apperror.ErrCacheRefresh, err)
	}
	if err := s.store.Set(ctx, UrgentCountsKey, raw, s.ttl); err != nil {
		// Serve the fresh counts anyway; the next request recomputes.
		s.logger.Warn("urgent counts cache write failed", zap.Error(err))
	}

	return snap, nil
}

func (s *dashboardService) InvalidateUrgentCounts(ctx context.Context) error {
	if err := s.store.Delete(ctx, UrgentCountsKey); err != nil {
		return fmt.Errorf("failed to invalidate urgent counts: %w", err)
	}
	return nil
}
