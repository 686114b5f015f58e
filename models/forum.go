package models

import (
	"time"

	"gorm.io/gorm"
)

// ForumCategory groups forum threads.
type ForumCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Color       string    `gorm:"size:16;default:'#28a745'" json:"color"`
	CreatedAt   time.Time `json:"created_at"`

	PostCount    int64      `gorm:"-" json:"post_count"`
	LastPostDate *time.Time `gorm:"-" json:"last_post_date"`
}

// ForumPost is a thread. ReplyCount tracks non-deleted replies and is only changed by SQL increments.
type ForumPost struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	AuthorID    *uint          `gorm:"index" json:"author_id"`
	Author      *Author        `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CategoryID  *uint          `gorm:"index" json:"category_id"`
	Category    *ForumCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	ReplyCount  int64          `gorm:"not null;default:0" json:"reply_count"`
	ViewCount   int64          `gorm:"not null;default:0" json:"view_count"`
	IsPinned    bool           `gorm:"not null;default:false;index" json:"is_pinned"`
	IsLocked    bool           `gorm:"not null;default:false" json:"is_locked"`
	LastReplyAt *time.Time     `gorm:"index" json:"last_reply_at"`
	LastReplyBy *uint          `json:"last_reply_by"`
	LastReplier *Author        `gorm:"foreignKey:LastReplyBy" json:"last_replier,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Replies     []ForumReply   `gorm:"foreignKey:PostID" json:"replies,omitempty"`
}

// ForumReply belongs to a post and optionally quotes another reply of the same post.
type ForumReply struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	PostID        uint           `gorm:"index;not null" json:"post_id"`
	AuthorID      *uint          `gorm:"index" json:"author_id"`
	Author        *Author        `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	ParentReplyID *uint          `gorm:"index" json:"parent_reply_id"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
