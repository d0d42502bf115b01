package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/notification/dto"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	FindByIDsForUser(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) ([]entity.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter dto.ListFilter) ([]entity.Notification, error)
	// MarkRead sets read_at only if it is still null and the notification is
	// addressed to recipientID. It returns the number of rows changed.
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	// UpdateStatus moves a pending request to its terminal status.
	UpdateStatus(ctx context.Context, id, recipientID uuid.UUID, status entity.RequestStatus, at time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	return r.db.WithContext(ctx).Omit("Sender", "Recipient").Create(notification).Error
}

func (r *notificationRepository) withParticipants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Recipient")
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	var n entity.Notification
	if err := r.withParticipants(ctx).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) FindByIDsForUser(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) ([]entity.Notification, error) {
	var ns []entity.Notification
	if len(ids) == 0 {
		return ns, nil
	}
	err := r.withParticipants(ctx).
		Where("id IN ?", ids).
		Where("(sender_id = ? OR recipient_id = ?)", userID, userID).
		Order("created_at desc").
		Order("id desc").
		Find(&ns).Error
	return ns, err
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter dto.ListFilter) ([]entity.Notification, error) {
	query := r.withParticipants(ctx).
		Where("(sender_id = ? OR recipient_id = ?)", userID, userID)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	// Read state belongs to the recipient, so these filters only match
	// notifications addressed to the user.
	switch filter.Status {
	case "unread":
		query = query.Where("recipient_id = ? AND read_at IS NULL", userID)
	case "read":
		query = query.Where("recipient_id = ? AND read_at IS NOT NULL", userID)
	}

	query = query.Order("created_at desc").Order("id desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var ns []entity.Notification
	if err := query.Find(&ns).Error; err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, recipientID).
		Updates(map[string]any{"read_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Updates(map[string]any{"read_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id, recipientID uuid.UUID, status entity.RequestStatus, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND recipient_id = ? AND status = ?", id, recipientID, entity.StatusPending).
		Updates(map[string]any{"status": status, "updated_at": at})
	return res.RowsAffected, res.Error
}
