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

// ErrPairNotVisible means the pair key insert was skipped by a conflicting
// row that this transaction cannot read yet. The caller should retry.
var ErrPairNotVisible = errors.New("private chat exists but is not visible yet")

// ChatRepository defines persistence operations for chats and their participants.
type ChatRepository interface {
	FindPrivateByPairKey(ctx context.Context, pairKey string) (*models.Chat, error)
	CreatePrivate(ctx context.Context, pairKey, userA, userB string) (*models.Chat, bool, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	ParticipantIDs(ctx context.Context, chatID string) ([]string, error)
	CountPrivate(ctx context.Context, userID string) (int64, error)
	ListPrivateSummaries(ctx context.Context, userID string, limit, offset int) ([]models.ChatSummary, error)
}

type chatRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db, log: observability.NewRepoLogger("chats", nil)}
}

// FindPrivateByPairKey returns the private chat for pairKey, or nil if none exists.
func (r *chatRepository) FindPrivateByPairKey(ctx context.Context, pairKey string) (*models.Chat, error) {
	return findPrivate(ctx, r.db, r.log, pairKey)
}

func findPrivate(ctx context.Context, db *gorm.DB, log *observability.RepoLogger, pairKey string) (*models.Chat, error) {
	var chat models.Chat
	err := db.WithContext(ctx).
		Where("pair_key = ? AND type = ?", pairKey, models.ChatTypePrivate).
		Take(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, log, "find private chat", err)
	}
	return &chat, nil
}

// CreatePrivate inserts the private chat for pairKey with both participants,
// or returns the chat a concurrent writer committed first. The bool reports
// whether this call created it. The pair key's unique index is what makes at
// most one chat per pair; the insert never fails on it.
func (r *chatRepository) CreatePrivate(ctx context.Context, pairKey, userA, userB string) (*models.Chat, bool, error) {
	defer observability.TrackQuery("create_private", "chats")()

	var (
		out     *models.Chat
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat := models.Chat{Type: models.ChatTypePrivate, PairKey: &pairKey}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Create(&chat)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			existing, err := findPrivate(ctx, tx, r.log, pairKey)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrPairNotVisible
			}
			out = existing
			return nil
		}

		now := chat.CreatedAt
		participants := []models.ChatParticipant{
			{UserID: userA, ChatID: chat.ID, JoinedAt: now},
			{UserID: userB, ChatID: chat.ID, JoinedAt: now},
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		out, created = &chat, true
		return nil
	})
	if errors.Is(err, ErrPairNotVisible) {
		observability.StoreErrors.WithLabelValues(models.CodeConflict).Inc()
		return nil, false, models.NewRaceConflictError("create private chat", err)
	}
	if err != nil {
		return nil, false, storeError(ctx, r.log, "create private chat", err)
	}
	return out, created, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	return isParticipant(ctx, r.db, r.log, chatID, userID)
}

func isParticipant(ctx context.Context, db *gorm.DB, log *observability.RepoLogger, chatID, userID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, storeError(ctx, log, "check participant", err)
	}
	return count > 0, nil
}

func (r *chatRepository) ParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "list participants", err)
	}
	return ids, nil
}

// privateChatsFrom joins the caller's chats with the other participant.
// Count and list share it so a chat whose peer is gone is dropped from both.
const privateChatsFrom = `
FROM chats c
JOIN chat_participants me ON me.chat_id = c.id AND me.user_id = @uid
JOIN chat_participants other ON other.chat_id = c.id AND other.user_id <> @uid
JOIN users u ON u.id = other.user_id`

const privateChatsWhere = `
WHERE c.type = 'private'`

func (r *chatRepository) CountPrivate(ctx context.Context, userID string) (int64, error) {
	defer observability.TrackQuery("count_private", "chats")()

	var total int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*)"+privateChatsFrom+privateChatsWhere, sql.Named("uid", userID)).
		Scan(&total).Error
	if err != nil {
		return 0, storeError(ctx, r.log, "count chats", err)
	}
	return total, nil
}

type chatSummaryRow struct {
	ChatID                 string
	ChatType               string
	ChatCreatedAt          time.Time
	ChatUpdatedAt          time.Time
	LastMessageID          *string
	OtherID                string
	OtherUsername          *string
	OtherDisplayName       *string
	OtherProfilePictureURL *string
	OtherStatus            string
	OtherLastSeen          *time.Time
	MsgID                  *string
	MsgTextContent         *string
	MsgMediaURL            *string
	MsgType                *string
	MsgSenderID            *string
	MsgCreatedAt           *time.Time
	SenderUsername         *string
	SenderDisplayName      *string
	UnreadCount            int64
}

const listPrivateChatsSQL = `
SELECT
	c.id AS chat_id,
	c.type AS chat_type,
	c.created_at AS chat_created_at,
	c.updated_at AS chat_updated_at,
	c.last_message_id AS last_message_id,
	u.id AS other_id,
	u.username AS other_username,
	u.display_name AS other_display_name,
	u.profile_picture_url AS other_profile_picture_url,
	u.status AS other_status,
	u.last_seen AS other_last_seen,
	m.id AS msg_id,
	m.text_content AS msg_text_content,
	m.media_url AS msg_media_url,
	m.type AS msg_type,
	m.sender_id AS msg_sender_id,
	m.created_at AS msg_created_at,
	s.username AS sender_username,
	s.display_name AS sender_display_name,
	(SELECT COUNT(*) FROM messages um
		WHERE um.chat_id = c.id
		AND (um.sender_id IS NULL OR um.sender_id <> @uid)
		AND NOT EXISTS (
			SELECT 1 FROM message_read_receipts rr
			WHERE rr.message_id = um.id AND rr.user_id = @uid
		)) AS unread_count` + privateChatsFrom + `
LEFT JOIN messages m ON m.id = c.last_message_id
LEFT JOIN users s ON s.id = m.sender_id` + privateChatsWhere + `
ORDER BY c.updated_at DESC, c.id DESC
LIMIT @limit OFFSET @offset`

// ListPrivateSummaries returns one page of the caller's private chats, most
// recently active first, with ties broken by chat id.
func (r *chatRepository) ListPrivateSummaries(ctx context.Context, userID string, limit, offset int) ([]models.ChatSummary, error) {
	defer observability.TrackQuery("list_private", "chats")()

	var rows []chatSummaryRow
	err := r.db.WithContext(ctx).Raw(listPrivateChatsSQL,
		sql.Named("uid", userID),
		sql.Named("limit", limit),
		sql.Named("offset", offset),
	).Scan(&rows).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "list chats", err)
	}

	out := make([]models.ChatSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.summary())
	}
	return out, nil
}

func (row chatSummaryRow) summary() models.ChatSummary {
	s := models.ChatSummary{
		ID:            row.ChatID,
		Type:          models.ChatType(row.ChatType),
		CreatedAt:     row.ChatCreatedAt,
		UpdatedAt:     row.ChatUpdatedAt,
		LastMessageID: row.LastMessageID,
		UnreadCount:   row.UnreadCount,
		OtherUser: models.UserProfile{
			ID:                row.OtherID,
			Username:          row.OtherUsername,
			DisplayName:       row.OtherDisplayName,
			ProfilePictureURL: row.OtherProfilePictureURL,
			Status:            row.OtherStatus,
			LastSeen:          row.OtherLastSeen,
		},
	}
	if row.MsgID == nil {
		return s
	}

	msg := &models.MessageSnapshot{
		ID:        *row.MsgID,
		ChatID:    row.ChatID,
		MediaURL:  row.MsgMediaURL,
		SenderID:  row.MsgSenderID,
		CreatedAt: deref(row.MsgCreatedAt),
	}
	if row.MsgTextContent != nil {
		msg.TextContent = *row.MsgTextContent
	}
	if row.MsgType != nil {
		msg.Type = models.MessageType(*row.MsgType)
	}
	if row.MsgSenderID != nil {
		msg.Sender = &models.SenderBrief{
			ID:          *row.MsgSenderID,
			Username:    row.SenderUsername,
			DisplayName: row.SenderDisplayName,
		}
	}
	s.LastMessage = msg
	return s
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
