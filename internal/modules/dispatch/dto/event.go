package dto

import (
	"time"

	"anoa.com/tutorhub/internal/entity"
	"github.com/google/uuid"
)

type EventType string

const (
	EventPayoutApproved        EventType = "payout_approved"
	EventPayoutRejected        EventType = "payout_rejected"
	EventPayoutPaid            EventType = "payout_paid"
	EventVerificationScheduled EventType = "verification_scheduled"
	EventDirectMessage         EventType = "direct_message"
)

// Event is a domain event addressed to one user.
type Event struct {
	Type        EventType  `json:"type"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	SenderID    *uuid.UUID `json:"sender_id,omitempty"`

	Payout       *PayoutPayload       `json:"payout,omitempty"`
	Verification *VerificationPayload `json:"verification,omitempty"`
	Message      *MessagePayload      `json:"message,omitempty"`
}

// PayoutPayload may carry the fields inline or only a request id, in which
// case the stored request fills the rest.
type PayoutPayload struct {
	RequestID     *uuid.UUID `json:"request_id,omitempty"`
	Amount        float64    `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	RequestDate   *time.Time `json:"request_date,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

type VerificationPayload struct {
	RequestID *uuid.UUID `json:"request_id,omitempty"`
	Platform  string     `json:"platform,omitempty"`
	// ScheduledDate is an ISO-8601 date or date-time.
	ScheduledDate string `json:"scheduled_date,omitempty"`
	MeetingLink   string `json:"meeting_link,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type MessagePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Document is the rendered, addressed output of the pipeline. The same
// event always renders the same document.
type Document struct {
	Template         string                  `json:"template"`
	RecipientName    string                  `json:"recipientName"`
	RecipientEmail   string                  `json:"recipientEmail"`
	Title            string                  `json:"title"`
	Message          string                  `json:"message"`
	NotificationType entity.NotificationType `json:"notificationType"`
	ActionURL        string                  `json:"actionUrl"`

	Amount        float64 `json:"amount,omitempty"`
	AmountLabel   string  `json:"amountLabel,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	RequestDate   string  `json:"requestDate,omitempty"`
	Reason        string  `json:"reason,omitempty"`

	PlatformLabel string     `json:"platformLabel,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	ScheduledText string     `json:"scheduledText,omitempty"`
	MeetingLink   string     `json:"meetingLink,omitempty"`
	Notes         string     `json:"notes,omitempty"`

	SenderName string `json:"senderName,omitempty"`

	Metadata entity.Metadata `json:"-"`
}

// DeliveryFailed is published when a notification was stored but its mail
// could not be handed to the transport.
type DeliveryFailed struct {
	Event          Event     `json:"event"`
	NotificationID uuid.UUID `json:"notification_id"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failed_at"`
}
