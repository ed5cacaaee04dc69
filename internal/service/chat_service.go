// Package service provides the chat and account business logic.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"directchat/internal/featureflags"
	"directchat/internal/models"
	"directchat/internal/notifications"
	"directchat/internal/observability"
	"directchat/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// maxResolveAttempts bounds how often a conflicting resolution is attempted
// before the caller is asked to retry.
const maxResolveAttempts = 2

// ChatService provides private chat resolution, message appends and chat listing.
type ChatService struct {
	chats        repository.ChatRepository
	users        repository.UserRepository
	messages     repository.MessageRepository
	notifier     *notifications.Notifier
	flags        *featureflags.Manager
	storeTimeout time.Duration
}

// NewChatService returns a new ChatService. notifier and flags may be nil,
// which disables activity events.
func NewChatService(
	chats repository.ChatRepository,
	users repository.UserRepository,
	messages repository.MessageRepository,
	notifier *notifications.Notifier,
	flags *featureflags.Manager,
	storeTimeout time.Duration,
) *ChatService {
	return &ChatService{
		chats:        chats,
		users:        users,
		messages:     messages,
		notifier:     notifier,
		flags:        flags,
		storeTimeout: storeTimeout,
	}
}

// ResolvePrivateChat returns the private chat between callerID and
// otherUserID, creating it if neither has started one yet. Concurrent calls
// for the same pair, in either order, agree on one chat and exactly one of
// them reports Created.
func (s *ChatService) ResolvePrivateChat(ctx context.Context, callerID, otherUserID string) (out models.ResolvedChat, err error) {
	span, ctx := observability.StartSpan(ctx, "chat.resolve_private", attribute.String("user.id", callerID))
	defer func() { span.End(err) }()

	callerID = strings.TrimSpace(callerID)
	otherUserID = strings.TrimSpace(otherUserID)
	if callerID == "" {
		return out, models.NewUnauthorizedError("authenticated user required")
	}
	if otherUserID == "" {
		return out, models.NewValidationError("recipientId is required")
	}
	if callerID == otherUserID {
		return out, models.NewValidationError("cannot start a private chat with yourself")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.users.Exists(ctx, otherUserID)
	if err != nil {
		return out, err
	}
	if !exists {
		return out, models.NewNotFoundError("User", otherUserID)
	}

	pairKey := models.PrivatePairKey(callerID, otherUserID)
	for attempt := 1; ; attempt++ {
		out, err = s.resolveOnce(ctx, pairKey, callerID, otherUserID)
		if err == nil {
			break
		}
		if !models.HasCode(err, models.CodeConflict) {
			observability.ChatResolutions.WithLabelValues("error").Inc()
			return out, err
		}
		observability.ChatResolutions.WithLabelValues("conflict").Inc()
		if attempt >= maxResolveAttempts {
			return models.ResolvedChat{}, models.NewTransientError("chat resolution conflicted, retry the request", err)
		}
		slog.WarnContext(ctx, "retrying private chat resolution",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	outcome := "existing"
	if out.Created {
		outcome = "created"
		s.publish(ctx, callerID, []string{callerID, otherUserID}, notifications.ChatActivity{
			Type:      notifications.EventChatCreated,
			ChatID:    out.ChatID,
			SenderID:  callerID,
			CreatedAt: time.Now().UTC(),
		})
	}
	observability.ChatResolutions.WithLabelValues(outcome).Inc()
	span.AddAttributes(attribute.String("chat.id", out.ChatID), attribute.Bool("chat.created", out.Created))
	return out, nil
}

func (s *ChatService) resolveOnce(ctx context.Context, pairKey, callerID, otherUserID string) (models.ResolvedChat, error) {
	existing, err := s.chats.FindPrivateByPairKey(ctx, pairKey)
	if err != nil {
		return models.ResolvedChat{}, err
	}
	if existing != nil {
		return models.ResolvedChat{ChatID: existing.ID}, nil
	}

	chat, created, err := s.chats.CreatePrivate(ctx, pairKey, callerID, otherUserID)
	if err != nil {
		return models.ResolvedChat{}, err
	}
	return models.ResolvedChat{ChatID: chat.ID, Created: created}, nil
}

// AppendMessageInput is the input for appending a message to a chat.
type AppendMessageInput struct {
	ChatID          string             `validate:"required,uuid"`
	SenderID        string             `validate:"required,max=128"`
	Content         string             `validate:"max=10000"`
	Type            models.MessageType `validate:"omitempty,oneof=text image file"`
	MediaURL        string             `validate:"omitempty,url,max=2048"`
	ClientMessageID string             `validate:"omitempty,max=64"`
}

// AppendMessage stores a message and makes it the chat's latest message.
// Retrying with the same ClientMessageID returns the message stored the
// first time instead of a second copy.
func (s *ChatService) AppendMessage(ctx context.Context, in AppendMessageInput) (msg *models.Message, err error) {
	span, ctx := observability.StartSpan(ctx, "chat.append_message",
		attribute.String("chat.id", in.ChatID),
		attribute.String("user.id", in.SenderID),
	)
	defer func() { span.End(err) }()

	in.ChatID = strings.TrimSpace(in.ChatID)
	in.ClientMessageID = strings.TrimSpace(in.ClientMessageID)
	in.MediaURL = strings.TrimSpace(in.MediaURL)
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	switch in.Type {
	case models.MessageTypeText:
		if strings.TrimSpace(in.Content) == "" {
			return nil, models.NewValidationError("content is required for text messages")
		}
	default:
		if in.MediaURL == "" {
			return nil, models.NewValidationError("mediaUrl is required for " + string(in.Type) + " messages")
		}
	}

	msg = &models.Message{
		ChatID:      in.ChatID,
		SenderID:    &in.SenderID,
		TextContent: in.Content,
		Type:        in.Type,
	}
	if in.MediaURL != "" {
		msg.MediaURL = &in.MediaURL
	}
	if in.ClientMessageID != "" {
		msg.ClientMessageID = &in.ClientMessageID
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	stored, duplicate, err := s.messages.Append(storeCtx, msg)
	if err != nil {
		return nil, err
	}
	if duplicate {
		observability.DuplicateMessages.Inc()
		span.AddAttributes(attribute.Bool("message.duplicate", true))
		return stored, nil
	}
	observability.MessagesAppended.WithLabelValues(string(stored.Type)).Inc()
	span.AddAttributes(attribute.String("message.id", stored.ID))

	if s.activityEnabled(in.SenderID) {
		participants, err := s.chats.ParticipantIDs(storeCtx, stored.ChatID)
		if err != nil {
			slog.WarnContext(ctx, "chat activity skipped", slog.String("chat_id", stored.ChatID), slog.String("error", err.Error()))
		} else {
			s.publish(ctx, in.SenderID, participants, notifications.ChatActivity{
				Type:      notifications.EventChatMessage,
				ChatID:    stored.ChatID,
				MessageID: stored.ID,
				SenderID:  in.SenderID,
				CreatedAt: stored.CreatedAt,
			})
		}
	}
	return stored, nil
}

// ListChats returns one page of userID's private chats, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, userID string, page, pageSize int) (out models.Page[models.ChatSummary], err error) {
	span, ctx := observability.StartSpan(ctx, "chat.list", attribute.String("user.id", userID))
	defer func() { span.End(err) }()

	if strings.TrimSpace(userID) == "" {
		return out, models.NewUnauthorizedError("authenticated user required")
	}
	page, pageSize = NormalizePage(page, pageSize)

	var (
		total int64
		items []models.ChatSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, cancel := withStoreTimeout(gctx, s.storeTimeout)
		defer cancel()
		n, err := s.chats.CountPrivate(c, userID)
		total = n
		return err
	})
	g.Go(func() error {
		c, cancel := withStoreTimeout(gctx, s.storeTimeout)
		defer cancel()
		rows, err := s.chats.ListPrivateSummaries(c, userID, pageSize, (page-1)*pageSize)
		items = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return out, err
	}

	span.AddAttributes(attribute.Int64("chat.total", total))
	return models.NewPage(items, page, pageSize, total), nil
}

// ListMessages returns one page of a chat's messages, newest first. Only
// participants may read a chat.
func (s *ChatService) ListMessages(ctx context.Context, chatID, callerID string, page, pageSize int) (out models.Page[models.Message], err error) {
	span, ctx := observability.StartSpan(ctx, "chat.list_messages",
		attribute.String("chat.id", chatID),
		attribute.String("user.id", callerID),
	)
	defer func() { span.End(err) }()

	if err := s.requireParticipant(ctx, chatID, callerID); err != nil {
		return out, err
	}
	page, pageSize = NormalizePage(page, pageSize)

	var (
		total int64
		items []models.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, cancel := withStoreTimeout(gctx, s.storeTimeout)
		defer cancel()
		n, err := s.messages.CountByChat(c, chatID)
		total = n
		return err
	})
	g.Go(func() error {
		c, cancel := withStoreTimeout(gctx, s.storeTimeout)
		defer cancel()
		rows, err := s.messages.ListByChat(c, chatID, pageSize, (page-1)*pageSize)
		items = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return out, err
	}
	return models.NewPage(items, page, pageSize, total), nil
}

// MarkChatRead marks every message in the chat not sent by callerID as read
// and returns how many were newly marked.
func (s *ChatService) MarkChatRead(ctx context.Context, chatID, callerID string) (int64, error) {
	if err := s.requireParticipant(ctx, chatID, callerID); err != nil {
		return 0, err
	}
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.messages.MarkRead(ctx, chatID, callerID)
}

func (s *ChatService) requireParticipant(ctx context.Context, chatID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.NewUnauthorizedError("authenticated user required")
	}
	if err := validate.Var(chatID, "required,uuid"); err != nil {
		return models.NewValidationError("chat id must be a valid id")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()
	ok, err := s.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("not a participant of this chat")
	}
	return nil
}

func (s *ChatService) activityEnabled(userID string) bool {
	return s.notifier != nil && s.flags.Enabled(featureflags.ChatActivityEvents, userID)
}

// publish fans event out to every recipient's activity channel. Failures are
// counted and logged; they never fail the operation that produced the event.
func (s *ChatService) publish(ctx context.Context, actorID string, recipients []string, event notifications.ChatActivity) {
	if !s.activityEnabled(actorID) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, uid := range recipients {
		if err := s.notifier.PublishChatActivity(ctx, uid, event); err != nil {
			observability.ActivityEventsDropped.Inc()
			slog.WarnContext(ctx, "chat activity publish failed",
				slog.String("chat_id", event.ChatID),
				slog.String("recipient_id", uid),
				slog.String("error", err.Error()),
			)
		}
	}
}
