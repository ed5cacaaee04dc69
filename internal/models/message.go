package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType is the kind of payload a message carries.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message is immutable once created.
type Message struct {
	ID              string      `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID          string      `gorm:"type:uuid;not null;index:idx_messages_chat_created,priority:1;uniqueIndex:idx_messages_dedup,priority:1" json:"chat_id"`
	SenderID        *string     `gorm:"size:128;uniqueIndex:idx_messages_dedup,priority:2" json:"sender_id"`
	TextContent     string      `gorm:"type:text" json:"text_content"`
	MediaURL        *string     `gorm:"size:2048" json:"media_url"`
	Type            MessageType `gorm:"size:16;not null;default:text" json:"type"`
	ClientMessageID *string     `gorm:"size:64;uniqueIndex:idx_messages_dedup,priority:3" json:"client_message_id,omitempty"`
	CreatedAt       time.Time   `gorm:"index:idx_messages_chat_created,priority:2,sort:desc" json:"created_at"`
	Sender          *User       `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"sender,omitempty"`
	Chat            *Chat       `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a UUID when the caller did not.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MessageReadReceipt records that a user has read a message.
type MessageReadReceipt struct {
	MessageID string    `gorm:"primaryKey;type:uuid" json:"message_id"`
	UserID    string    `gorm:"primaryKey;size:128" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
	Message   *Message  `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the database table name for MessageReadReceipt.
func (MessageReadReceipt) TableName() string {
	return "message_read_receipts"
}
