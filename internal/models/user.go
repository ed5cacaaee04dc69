package models

import "time"

// User is an account keyed by the identifier issued by the identity provider.
type User struct {
	ID                string    `gorm:"primaryKey;size:128" json:"id"`
	Username          *string   `gorm:"size:255;uniqueIndex" json:"username"`
	Email             string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	DisplayName       *string   `gorm:"size:255" json:"display_name"`
	ProfilePictureURL *string   `gorm:"size:2048" json:"profile_picture_url"`
	Status            string    `gorm:"size:32;not null;default:Offline" json:"status"`
	IsProfileComplete bool      `gorm:"not null;default:false" json:"is_profile_complete"`
	LastSeen          time.Time `json:"last_seen"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}

// UserProfile is the public projection of a user shown to other users.
type UserProfile struct {
	ID                string     `json:"id"`
	Username          *string    `json:"username"`
	DisplayName       *string    `json:"display_name"`
	ProfilePictureURL *string    `json:"profile_picture_url"`
	Status            string     `json:"status"`
	LastSeen          *time.Time `json:"last_seen"`
}

// Profile returns the public projection of u.
func (u *User) Profile() UserProfile {
	lastSeen := u.LastSeen
	return UserProfile{
		ID:                u.ID,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		ProfilePictureURL: u.ProfilePictureURL,
		Status:            u.Status,
		LastSeen:          &lastSeen,
	}
}

// Presence values. Presence is written elsewhere; this service only reads it.
const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)
