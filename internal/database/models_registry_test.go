package database

import (
	"testing"

	"directchat/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPersistentModels_CoversChatTables(t *testing.T) {
	var tables []string
	for _, model := range PersistentModels() {
		tabler, ok := model.(interface{ TableName() string })
		if assert.True(t, ok, "%T must declare its table name", model) {
			tables = append(tables, tabler.TableName())
		}
	}

	assert.Equal(t, []string{
		"users", "chats", "group_chat_details", "chat_participants", "messages", "message_read_receipts",
	}, tables)
	assert.IsType(t, &models.User{}, PersistentModels()[0], "users must migrate first")
}
