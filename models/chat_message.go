package models

import "time"

const (
	MessageTypeUser   = "user"
	MessageTypeAdmin  = "admin"
	MessageTypeSystem = "system"
)

// ChatMessage is an immutable chat record; only IsRead changes after insert.
type ChatMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	Username    string    `gorm:"size:100;not null" json:"username"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	MessageType string    `gorm:"size:16;not null;default:'user'" json:"message_type"`
	IsRead      bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
