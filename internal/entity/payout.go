package entity

import (
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutApproved PayoutStatus = "approved"
	PayoutRejected PayoutStatus = "rejected"
	PayoutPaid     PayoutStatus = "paid"
)

// PayoutRequest is owned by the wallet service. Read-only here.
type PayoutRequest struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	TeacherID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Amount          float64      `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency        string       `gorm:"size:3" json:"currency"`
	PaymentMethod   string       `gorm:"size:50" json:"payment_method"`
	RequestDate     time.Time    `json:"request_date"`
	Status          PayoutStatus `gorm:"size:20;not null;index" json:"status"`
	RejectionReason *string      `gorm:"type:text" json:"rejection_reason,omitempty"`
}

type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationScheduled VerificationStatus = "scheduled"
	VerificationApproved  VerificationStatus = "approved"
	VerificationRejected  VerificationStatus = "rejected"
)

// VerificationRequest is a teacher application. Scheduling fields are set
// by the admin scheduling flow before a notification is sent. Read-only here.
type VerificationRequest struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TeacherID   uuid.UUID          `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Status      VerificationStatus `gorm:"size:20;not null;index" json:"status"`
	ScheduledAt *time.Time         `json:"scheduled_at,omitempty"`
	Platform    *string            `gorm:"size:30" json:"platform,omitempty"`
	MeetingLink *string            `gorm:"type:text" json:"meeting_link,omitempty"`
	Notes       *string            `gorm:"type:text" json:"notes,omitempty"`
}
