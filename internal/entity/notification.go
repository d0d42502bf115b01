package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type NotificationType string

const (
	TypeMessage      NotificationType = "message"
	TypeAlert        NotificationType = "alert"
	TypeSystem       NotificationType = "system"
	TypeRequest      NotificationType = "request"
	TypePayment      NotificationType = "payment"
	TypeVerification NotificationType = "verification"
	TypePayout       NotificationType = "payout"
)

func NotificationTypes() []NotificationType {
	return []NotificationType{TypeMessage, TypeAlert, TypeSystem, TypeRequest, TypePayment, TypeVerification, TypePayout}
}

func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes() {
		if v == t {
			return true
		}
	}
	return false
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDeclined RequestStatus = "declined"
)

// Metadata is a free-form JSON object stored alongside a notification.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

func (Metadata) GormDataType() string {
	return "json"
}

func (Metadata) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}

// Number reads a finite numeric entry. JSON numbers, Go numerics and
// numeric strings are accepted.
func (m Metadata) Number(key string) (float64, bool) {
	f, ok := m.rawNumber(key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (m Metadata) rawNumber(key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID    *uuid.UUID       `gorm:"type:uuid;index" json:"sender_id"` // nil for system notifications
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;index" json:"recipient_id"`
	ParentID    *uuid.UUID       `gorm:"type:uuid;index" json:"parent_id"`
	ThreadID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"thread_id"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Body        string           `gorm:"type:text" json:"body"`
	Type        NotificationType `gorm:"size:20;not null;index" json:"type"`
	Metadata    Metadata         `json:"metadata,omitempty"`
	Status      *RequestStatus   `gorm:"size:20" json:"status,omitempty"`
	ReadAt      *time.Time       `json:"read_at"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Sender    *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Recipient *User `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.ThreadID == uuid.Nil {
		n.ThreadID = n.ID
	}
	return nil
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

func (n *Notification) IsSystem() bool {
	return n.SenderID == nil
}

// IsParticipant reports whether userID is the sender or the recipient.
func (n *Notification) IsParticipant(userID uuid.UUID) bool {
	if n.RecipientID == userID {
		return true
	}
	return n.SenderID != nil && *n.SenderID == userID
}

// Counterpart returns the other participant, or nil when userID is the
// recipient of a system notification.
func (n *Notification) Counterpart(userID uuid.UUID) *uuid.UUID {
	if n.SenderID != nil && *n.SenderID == userID {
		id := n.RecipientID
		return &id
	}
	return n.SenderID
}
