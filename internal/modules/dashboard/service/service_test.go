package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"anoa.com/tutorhub/internal/modules/dashboard/dto"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	payouts, verifications, sessions, disputes int64
	sessionsErr                                error
	calls                                      atomic.Int32
}

func (f *fakeSource) CountPendingPayouts(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.payouts, nil
}

func (f *fakeSource) CountPendingVerifications(context.Context) (int64, error) {
	return f.verifications, nil
}

func (f *fakeSource) CountPendingSessions(context.Context) (int64, error) {
	return f.sessions, f.sessionsErr
}

func (f *fakeSource) CountReportedDisputes(context.Context) (int64, error) {
	return f.disputes, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, errors.New("connection refused")
}

func (brokenStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func newService(source *fakeSource, store cache.Store, clock *manualClock) *dashboardService {
	s := NewDashboardService(source, store, DefaultUrgentCountsTTL, zap.NewNop()).(*dashboardService)
	s.now = clock.Now
	return s
}

func TestGetUrgentCountsServesCacheWithinTTL(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStore().WithClock(clock.Now)
	source := &fakeSource{payouts: 3, verifications: 2, sessions: 5, disputes: 1}
	svc := newService(source, store, clock)
	ctx := context.Background()

	first, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.WithdrawalRequests)
	assert.EqualValues(t, 2, first.TeacherApplications)
	assert.EqualValues(t, 5, first.PendingSessions)
	assert.EqualValues(t, 1, first.ReportedDisputes)
	assert.EqualValues(t, 1, source.calls.Load())

	ttl, err := store.TTL(ctx, UrgentCountsKey)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, ttl)

	// Source changes are invisible until the entry expires.
	source.payouts = 10
	clock.now = clock.now.Add(299 * time.Second)
	second, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, second.WithdrawalRequests)
	assert.EqualValues(t, 1, source.calls.Load())

	clock.now = clock.now.Add(2 * time.Second)
	third, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, third.WithdrawalRequests)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestGetUrgentCountsFailureCachesNothing(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStore().WithClock(clock.Now)
	source := &fakeSource{payouts: 3, sessionsErr: errors.New("db timeout")}
	svc := newService(source, store, clock)
	ctx := context.Background()

	_, err := svc.GetUrgentCounts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrCacheRefresh)
	assert.Equal(t, apperror.KindCacheRefresh, apperror.Kind(err))

	_, err = store.Get(ctx, UrgentCountsKey)
	assert.ErrorIs(t, err, cache.ErrMiss)

	source.sessionsErr = nil
	snap, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, snap.WithdrawalRequests)
}

func TestGetUrgentCountsRecomputesWhenCacheIsDown(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	source := &fakeSource{payouts: 4}
	svc := newService(source, brokenStore{}, clock)

	snap, err := svc.GetUrgentCounts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, snap.WithdrawalRequests)
	assert.Equal(t, clock.now, snap.GeneratedAt)
}

func TestGetUrgentCountsIgnoresCorruptEntry(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, UrgentCountsKey, []byte("{not json"), time.Minute))

	source := &fakeSource{disputes: 7}
	svc := newService(source, store, clock)

	snap, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, snap.ReportedDisputes)

	raw, err := store.Get(ctx, UrgentCountsKey)
	require.NoError(t, err)
	var stored dto.UrgentActionsSnapshot
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.EqualValues(t, 7, stored.ReportedDisputes)
}

func TestInvalidateUrgentCounts(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStore().WithClock(clock.Now)
	source := &fakeSource{payouts: 1}
	svc := newService(source, store, clock)
	ctx := context.Background()

	_, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)

	source.payouts = 2
	require.NoError(t, svc.InvalidateUrgentCounts(ctx))

	snap, err := svc.GetUrgentCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.WithdrawalRequests)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestSnapshotJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(dto.UrgentActionsSnapshot{WithdrawalRequests: 1, TeacherApplications: 2, PendingSessions: 3, ReportedDisputes: 4})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.EqualValues(t, 1, fields["withdrawalRequests"])
	assert.EqualValues(t, 2, fields["teacherApplications"])
	assert.EqualValues(t, 3, fields["pendingSessions"])
	assert.EqualValues(t, 4, fields["reportedDisputes"])
}
