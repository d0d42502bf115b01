package repository

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestRepository reads the payout and verification requests that
// events refer to. It never writes.
type RequestRepository interface {
	FindPayout(ctx context.Context, id uuid.UUID) (*entity.PayoutRequest, error)
	FindVerification(ctx context.Context, id uuid.UUID) (*entity.VerificationRequest, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) FindPayout(ctx context.Context, id uuid.UUID) (*entity.PayoutRequest, error) {
	var p entity.PayoutRequest
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payout request: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *requestRepository) FindVerification(ctx context.Context, id uuid.UUID) (*entity.VerificationRequest, error) {
	var v entity.VerificationRequest
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("verification request: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}
