package repository

import (
	"context"

	"anoa.com/tutorhub/internal/entity"
	"gorm.io/gorm"
)

// CountSource runs the aggregate queries behind the admin dashboard.
type CountSource interface {
	CountPendingPayouts(ctx context.Context) (int64, error)
	CountPendingVerifications(ctx context.Context) (int64, error)
	// CountPendingSessions counts sessions that have no teacher yet or are
	// waiting on the teacher. A row matching both is counted once.
	CountPendingSessions(ctx context.Context) (int64, error)
	CountReportedDisputes(ctx context.Context) (int64, error)
}

type countSource struct {
	db *gorm.DB
}

func NewCountSource(db *gorm.DB) CountSource {
	return &countSource{db: db}
}

func (r *countSource) CountPendingPayouts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.PayoutRequest{}).
		Where("status = ?", entity.PayoutPending).
		Count(&count).Error
	return count, err
}

func (r *countSource) CountPendingVerifications(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.VerificationRequest{}).
		Where("status = ?", entity.VerificationPending).
		Count(&count).Error
	return count, err
}

func (r *countSource) CountPendingSessions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.TeachingSession{}).
		Where("(teacher_id IS NULL OR status = ?)", entity.SessionPendingTeacher).
		Count(&count).Error
	return count, err
}

func (r *countSource) CountReportedDisputes(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Dispute{}).
		Where("status = ?", entity.DisputeReported).
		Count(&count).Error
	return count, err
}
