package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of account kinds.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleTeacher  Role = "teacher"
	RoleAdmin    Role = "admin"
)

func Roles() []Role {
	return []Role{RoleGuardian, RoleTeacher, RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleGuardian, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone        *string   `gorm:"size:30" json:"phone,omitempty"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:20;not null;index" json:"role"`
	AvatarURL    *string   `gorm:"type:text" json:"avatar_url,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
