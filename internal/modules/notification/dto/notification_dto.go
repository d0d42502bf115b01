package dto

import (
	"time"

	"anoa.com/tutorhub/internal/entity"
	"github.com/google/uuid"
)

// CreateInput is a single addressed notification.
type CreateInput struct {
	SenderID    *uuid.UUID
	RecipientID uuid.UUID
	Title       string
	Body        string
	Type        entity.NotificationType
	Metadata    entity.Metadata
	// Sanitize strips markup from title and body. Set for user-originated input.
	Sanitize bool
}

// CreateNotificationRequest accepts either recipient_id or recipient_ids.
type CreateNotificationRequest struct {
	RecipientID  *uuid.UUID      `json:"recipient_id" binding:"required_without=RecipientIDs"`
	RecipientIDs []uuid.UUID     `json:"recipient_ids" binding:"required_without=RecipientID,max=100"`
	Title        string          `json:"title" binding:"required,max=255"`
	Body         string          `json:"body" binding:"max=10000"`
	Type         string          `json:"type" binding:"required"`
	Metadata     entity.Metadata `json:"metadata"`
}

// Recipients merges recipient_id and recipient_ids, dropping duplicates.
func (r CreateNotificationRequest) Recipients() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if r.RecipientID != nil {
		add(*r.RecipientID)
	}
	for _, id := range r.RecipientIDs {
		add(id)
	}
	return out
}

type ReplyRequest struct {
	ParentID uuid.UUID `json:"parent_id" binding:"required"`
	Body     string    `json:"body" binding:"required,max=10000"`
}

type RespondRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accepted declined"`
}

type ListFilter struct {
	Type   string `form:"type"`
	Status string `form:"status" binding:"omitempty,oneof=read unread"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type SearchQuery struct {
	Query string `form:"q" binding:"required,min=2,max=200"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type UserSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Phone  *string   `json:"phone"`
	Avatar *string   `json:"avatar"`
}

type NotificationResponse struct {
	ID        uuid.UUID               `json:"id"`
	ParentID  *uuid.UUID              `json:"parent_id"`
	ThreadID  uuid.UUID               `json:"thread_id"`
	Sender    *UserSummary            `json:"sender"`
	Recipient *UserSummary            `json:"recipient"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Type      entity.NotificationType `json:"type"`
	Metadata  entity.Metadata         `json:"metadata,omitempty"`
	Status    *entity.RequestStatus   `json:"status,omitempty"`
	IsRead    bool                    `json:"is_read"`
	ReadAt    *time.Time              `json:"read_at"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func summarize(u *entity.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Phone:  u.Phone,
		Avatar: u.AvatarURL,
	}
}

// ToResponse expands a notification with its participant summaries. Sender
// and Recipient must be preloaded; a nil sender is a system notification.
func ToResponse(n *entity.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		ParentID:  n.ParentID,
		ThreadID:  n.ThreadID,
		Sender:    summarize(n.Sender),
		Recipient: summarize(n.Recipient),
		Title:     n.Title,
		Body:      n.Body,
		Type:      n.Type,
		Metadata:  n.Metadata,
		Status:    n.Status,
		IsRead:    n.IsRead(),
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func ToResponses(ns []entity.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for i := range ns {
		out = append(out, ToResponse(&ns[i]))
	}
	return out
}
