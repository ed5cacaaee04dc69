package database

import "directchat/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// in dependency order.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Chat{},
		&models.GroupChatDetails{},
		&models.ChatParticipant{},
		&models.Message{},
		&models.MessageReadReceipt{},
	}
}
