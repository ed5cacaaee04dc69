package database

import (
	"context"
	"testing"

	"directchat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		mode        string
		destructive bool
		wantSQL     bool
		wantAuto    bool
		wantErr     bool
	}{
		{name: "hybrid dev", env: "development", mode: "hybrid", wantSQL: true, wantAuto: true},
		{name: "hybrid prod", env: "production", mode: "hybrid", wantSQL: true},
		{name: "empty mode defaults to hybrid", env: "test", mode: "", wantSQL: true, wantAuto: true},
		{name: "sql", env: "development", mode: "sql", wantSQL: true},
		{name: "auto dev", env: "development", mode: "auto", wantAuto: true},
		{name: "auto staging refused", env: "staging", mode: "auto", wantErr: true},
		{name: "auto prod allowed", env: "production", mode: "auto", destructive: true, wantAuto: true},
		{name: "unknown", env: "development", mode: "magic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&config.Config{
				Env:                           tt.env,
				DBSchemaMode:                  tt.mode,
				DBAutoMigrateAllowDestructive: tt.destructive,
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.RunSQL)
			assert.Equal(t, tt.wantAuto, plan.RunAutoMigrate)
		})
	}
}

func TestApplySchema_AutoMode(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	cfg := &config.Config{Env: "test", DBSchemaMode: "auto"}

	require.NoError(t, ApplySchema(ctx, db, cfg))
	for _, table := range []string{"users", "chats", "chat_participants", "messages", "message_read_receipts"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	status, err := GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.True(t, status.WillRunAutoMigrate)
	assert.False(t, status.WillRunSQL)
	assert.Empty(t, status.PendingMigrations)
	assert.Empty(t, status.MissingIndexes)
}

func TestMissingUniqueIndexes(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	// Tables that look right but lack the uniqueness guarantees.
	require.NoError(t, db.Exec(`CREATE TABLE chats (id TEXT PRIMARY KEY, type TEXT, pair_key TEXT)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE messages (id TEXT PRIMARY KEY, chat_id TEXT, sender_id TEXT, client_message_id TEXT)`).Error)
	assert.Equal(t, []string{"idx_chats_pair_key", "idx_messages_dedup"}, missingUniqueIndexes(ctx, db))

	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX idx_chats_pair_key ON chats (pair_key)`).Error)
	assert.Equal(t, []string{"idx_messages_dedup"}, missingUniqueIndexes(ctx, db))
}

func TestEmbeddedMigrationNamesRequiredIndexes(t *testing.T) {
	up := GetMigrations()[0].UpScript
	for _, idx := range requiredUniqueIndexes {
		assert.Contains(t, up, "CREATE UNIQUE INDEX IF NOT EXISTS "+idx.name)
	}
}
