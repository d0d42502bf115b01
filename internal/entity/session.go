package entity

import (
	"time"

	"github.com/google/uuid"
)

const SessionPendingTeacher = "pending_teacher"

// TeachingSession links a guardian to a teacher. TeacherID stays nil until
// a teacher is assigned.
type TeachingSession struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GuardianID uuid.UUID  `gorm:"type:uuid;not null;index" json:"guardian_id"`
	TeacherID  *uuid.UUID `gorm:"type:uuid;index" json:"teacher_id"`
	Status     string     `gorm:"size:30;not null;index" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

const DisputeReported = "reported"

type Dispute struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Status    string    `gorm:"size:20;not null;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
