package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a portal account. Passwords are stored as bcrypt hashes only.
// OAuth accounts carry Provider/ProviderID and may have an empty PasswordHash.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email,omitempty"`
	Username     *string    `gorm:"size:64;uniqueIndex" json:"username,omitempty"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	DisplayName  string     `gorm:"size:100;not null" json:"display_name"`
	Role         string     `gorm:"size:16;not null;default:'user';index" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	Location     string     `gorm:"size:100" json:"location,omitempty"`
	Bio          string     `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL    string     `gorm:"size:512" json:"avatar_url,omitempty"`
	Provider     string     `gorm:"size:32;index:idx_users_provider" json:"provider,omitempty"`
	ProviderID   string     `gorm:"size:255;index:idx_users_provider" json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate fills the role and display name when the caller left them blank.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.DisplayName == "" && u.Username != nil {
		u.DisplayName = *u.Username
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Author is the public projection of a user embedded in documents, posts and replies.
type Author struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Username    *string `json:"username,omitempty"`
	DisplayName string  `json:"display_name"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	Role        string  `json:"role"`
}

// TableName maps the projection onto the users table.
func (Author) TableName() string { return "users" }
