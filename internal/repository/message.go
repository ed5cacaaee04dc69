package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"directchat/internal/models"
	"directchat/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines persistence operations for messages and read state.
type MessageRepository interface {
	Append(ctx context.Context, msg *models.Message) (*models.Message, bool, error)
	ListByChat(ctx context.Context, chatID string, limit, offset int) ([]models.Message, error)
	CountByChat(ctx context.Context, chatID string) (int64, error)
	MarkRead(ctx context.Context, chatID, userID string) (int64, error)
}

type messageRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
	now func() time.Time
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db:  db,
		log: observability.NewRepoLogger("messages", nil),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Append stores msg and moves its chat's latest-message pointer in one
// transaction. The chat row is locked first, so appends to one chat commit
// one at a time and the pointer always names the last committed message.
// Activity time never moves backwards even if the clock does.
//
// When msg carries a ClientMessageID already used by the same sender in the
// chat, the stored message is returned and the bool is true.
func (r *messageRepository) Append(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	defer observability.TrackQuery("append", "messages")()

	var duplicate *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Select("id", "updated_at").
			Where("id = ?", msg.ChatID).
			Take(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Chat", msg.ChatID)
		}
		if err != nil {
			return err
		}

		if msg.SenderID == nil {
			return models.NewForbiddenError("sender is not a participant of this chat")
		}
		ok, err := isParticipant(ctx, tx, r.log, msg.ChatID, *msg.SenderID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewForbiddenError("sender is not a participant of this chat")
		}

		if msg.ClientMessageID != nil {
			var existing models.Message
			err := tx.Where("chat_id = ? AND sender_id = ? AND client_message_id = ?",
				msg.ChatID, *msg.SenderID, *msg.ClientMessageID).
				Take(&existing).Error
			if err == nil {
				duplicate = &existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		msg.CreatedAt = r.now()
		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return err
		}

		activity := chat.UpdatedAt
		if msg.CreatedAt.After(activity) {
			activity = msg.CreatedAt
		}
		return tx.Model(&models.Chat{}).
			Where("id = ?", msg.ChatID).
			UpdateColumns(map[string]interface{}{
				"last_message_id": msg.ID,
				"updated_at":      activity,
			}).Error
	})
	if err != nil {
		return nil, false, storeError(ctx, r.log, "append message", err)
	}
	if duplicate != nil {
		return duplicate, true, nil
	}
	return msg, false, nil
}

// ListByChat returns messages newest first with their senders.
func (r *messageRepository) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]models.Message, error) {
	defer observability.TrackQuery("list_by_chat", "messages")()

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "list messages", err)
	}
	return messages, nil
}

func (r *messageRepository) CountByChat(ctx context.Context, chatID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("chat_id = ?", chatID).Count(&total).Error; err != nil {
		return 0, storeError(ctx, r.log, "count messages", err)
	}
	return total, nil
}

const markReadSQL = `
INSERT INTO message_read_receipts (message_id, user_id, read_at)
SELECT m.id, @uid, @now FROM messages m
WHERE m.chat_id = @chat
	AND (m.sender_id IS NULL OR m.sender_id <> @uid)
	AND NOT EXISTS (
		SELECT 1 FROM message_read_receipts rr
		WHERE rr.message_id = m.id AND rr.user_id = @uid
	)
ON CONFLICT DO NOTHING`

// MarkRead records userID as having read every message in the chat they did
// not send. It returns how many receipts were added.
func (r *messageRepository) MarkRead(ctx context.Context, chatID, userID string) (int64, error) {
	defer observability.TrackQuery("mark_read", "message_read_receipts")()

	res := r.db.WithContext(ctx).Exec(markReadSQL,
		sql.Named("uid", userID),
		sql.Named("chat", chatID),
		sql.Named("now", r.now()),
	)
	if res.Error != nil {
		return 0, storeError(ctx, r.log, "mark chat read", res.Error)
	}
	return res.RowsAffected, nil
}
