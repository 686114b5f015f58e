package models

import (
	"time"

	"gorm.io/gorm"
)

// Announcement is an admin-authored notice shown on the home page while active.
type Announcement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Type      string         `gorm:"size:20;not null;default:'info'" json:"type"`
	Icon      string         `gorm:"size:50;default:'fas fa-info-circle'" json:"icon"`
	IsActive  bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedBy *uint          `gorm:"index" json:"created_by"`
	Creator   *Author        `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
