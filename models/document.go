package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// DocumentCategory groups documents in the document center.
type DocumentCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Color       string    `gorm:"size:16;default:'#007bff'" json:"color"`
	Icon        string    `gorm:"size:50;default:'fas fa-file'" json:"icon"`
	CreatedAt   time.Time `json:"created_at"`

	DocumentCount int64 `gorm:"-" json:"document_count"`
}

// Document is the metadata row for an uploaded blob. FilePath holds the blob name relative to the upload dir.
type Document struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Title         string            `gorm:"size:255;not null" json:"title"`
	Description   string            `gorm:"type:text" json:"description"`
	Filename      string            `gorm:"size:255;not null" json:"filename"`
	FilePath      string            `gorm:"size:500;not null" json:"-"`
	FileSize      int64             `gorm:"not null" json:"file_size"`
	FileType      string            `gorm:"size:100" json:"file_type"`
	CategoryID    *uint             `gorm:"index" json:"category_id"`
	Category      *DocumentCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	UploadedBy    *uint             `gorm:"index" json:"uploaded_by"`
	Uploader      *Author           `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
	Tags          string            `gorm:"size:500" json:"-"`
	DownloadCount int64             `gorm:"not null;default:0" json:"download_count"`
	IsFeatured    bool              `gorm:"not null;default:false;index" json:"is_featured"`
	IsActive      bool              `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`

	TagList []string `gorm:"-" json:"tags"`
}

// AfterFind expands the stored comma separated tags.
func (d *Document) AfterFind(tx *gorm.DB) error {
	d.TagList = SplitTags(d.Tags)
	return nil
}

// SplitTags turns "a, b,,c" into ["a","b","c"].
func SplitTags(raw string) []string {
	out := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinTags normalises a tag list back into its stored form.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}
