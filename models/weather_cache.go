package models

import (
	"time"

	"gorm.io/datatypes"
)

// WeatherCache keeps the last normalised upstream payload per location key.
type WeatherCache struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	Location string         `gorm:"size:100;uniqueIndex;not null" json:"location"`
	Payload  datatypes.JSON `gorm:"not null" json:"payload"`
	CachedAt time.Time      `gorm:"not null;index" json:"cached_at"`
}

// TableName keeps the singular table name used by the portal.
func (WeatherCache) TableName() string { return "weather_cache" }
