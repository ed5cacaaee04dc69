package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatType distinguishes one-to-one chats from group chats.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Chat is a messaging session. Private chats carry a PairKey that is unique
// per unordered pair of participants.
type Chat struct {
	ID            string            `gorm:"type:uuid;primaryKey" json:"id"`
	Type          ChatType          `gorm:"size:16;not null" json:"type"`
	PairKey       *string           `gorm:"size:520;uniqueIndex" json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `gorm:"index:idx_chats_activity,sort:desc" json:"updated_at"`
	LastMessageID *string           `gorm:"type:uuid" json:"last_message_id"`
	Participants  []ChatParticipant `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string {
	return "chats"
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Chat) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ChatParticipant links a user to a chat.
type ChatParticipant struct {
	UserID   string    `gorm:"primaryKey;size:128" json:"user_id"`
	ChatID   string    `gorm:"primaryKey;type:uuid;index" json:"chat_id"`
	JoinedAt time.Time `json:"joined_at"`
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName returns the database table name for ChatParticipant.
func (ChatParticipant) TableName() string {
	return "chat_participants"
}

// GroupChatDetails holds group metadata. Group semantics are not implemented;
// the table exists so group chats can be added without a schema change.
type GroupChatDetails struct {
	ChatID   string  `gorm:"primaryKey;type:uuid" json:"chat_id"`
	Name     string  `gorm:"size:255;not null" json:"name"`
	ImageURL *string `gorm:"size:2048" json:"image_url"`
	Chat     *Chat   `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the database table name for GroupChatDetails.
func (GroupChatDetails) TableName() string {
	return "group_chat_details"
}

// PrivatePairKey normalizes an unordered pair of user ids into a single key.
// The length prefix keeps keys unambiguous for ids that contain the separator.
func PrivatePairKey(a, b string) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%d:%s:%s", len(lo), lo, hi)
}

// ResolvedChat is the outcome of resolving a private chat.
type ResolvedChat struct {
	ChatID  string `json:"chat_id"`
	Created bool   `json:"created"`
}

// MessageSnapshot is the denormalized latest message shown in a chat list.
type MessageSnapshot struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chat_id"`
	TextContent string       `json:"text_content"`
	MediaURL    *string      `json:"media_url"`
	Type        MessageType  `json:"type"`
	SenderID    *string      `json:"sender_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Sender      *SenderBrief `json:"sender"`
}

// SenderBrief identifies the author of a message snapshot.
type SenderBrief struct {
	ID          string  `json:"id"`
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
}

// ChatSummary is one entry of a user's chat list.
type ChatSummary struct {
	ID            string           `json:"id"`
	Type          ChatType         `json:"type"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	LastMessageID *string          `json:"last_message_id"`
	UnreadCount   int64            `json:"unread_count"`
	OtherUser     UserProfile      `json:"other_user"`
	LastMessage   *MessageSnapshot `json:"last_message"`
}

// Page is a generic page of results with totals.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// NewPage fills in TotalPages as ceil(total / pageSize) and never returns nil items.
func NewPage[T any](items []T, page, pageSize int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}
}
