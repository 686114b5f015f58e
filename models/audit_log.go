package models

import "time"

// AuditLog records an admin moderation action that changed state.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    *uint     `gorm:"index" json:"actor_id"`
	Actor      *Author   `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	TargetType string    `gorm:"size:32;not null" json:"target_type"`
	TargetID   uint      `gorm:"not null" json:"target_id"`
	Detail     string    `gorm:"size:500" json:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
