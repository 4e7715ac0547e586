package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Profile is the user-facing record linked 1:1 to an identity. is_online
// and last_seen are written only by the presence tracker.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Username    string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	DisplayName *string   `gorm:"size:100" json:"display_name,omitempty"`
	IsOnline    bool      `gorm:"default:false" json:"is_online"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RoleGrant assigns a role to a user. At most one grant per user; a
// missing row reads as student at the lookup site, never as an inserted
// default.
type RoleGrant struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}

// Message is immutable once created. Seq is a server-assigned monotonic
// column that breaks created_at ties so history reads and broadcast
// order agree.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Seq       int64     `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
