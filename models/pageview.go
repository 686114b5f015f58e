package models

import "time"

// PageView aggregates SPA page loads per day and path.
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"uniqueIndex:idx_pv_date_path;type:date;not null" json:"date"`
	Path      string    `gorm:"uniqueIndex:idx_pv_date_path;size:255;not null" json:"path"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
