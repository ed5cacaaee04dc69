// Package notifications publishes chat activity events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activityChannelPrefix = "chat:activity:user:"

	// EventChatMessage is emitted after a message is committed to a chat.
	EventChatMessage = "chat.message"
	// EventChatCreated is emitted when a private chat is first created.
	EventChatCreated = "chat.created"
)

// ChatActivity tells a participant that a chat in their list changed.
type ChatActivity struct {
	Type      string    `json:"type"`
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier provides helpers to publish activity into Redis channels.
type Notifier struct {
	rdb redis.UniversalClient
}

// NewNotifier creates a Notifier. A nil client makes every publish a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	if rdb == nil {
		return &Notifier{}
	}
	return &Notifier{rdb: rdb}
}

// ActivityChannel derives the Redis channel name for a user's chat activity.
func ActivityChannel(userID string) string {
	return activityChannelPrefix + userID
}

// PublishChatActivity sends event to userID's activity channel.
func (n *Notifier) PublishChatActivity(ctx context.Context, userID string, event ChatActivity) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal chat activity: %w", err)
	}
	return n.rdb.Publish(ctx, ActivityChannel(userID), payload).Err()
}

// SubscribeActivity subscribes to every user's activity channel and calls
// onEvent for each decoded event until ctx is cancelled. Malformed payloads
// are logged and skipped.
func (n *Notifier) SubscribeActivity(ctx context.Context, onEvent func(userID string, event ChatActivity)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, activityChannelPrefix+"*")
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe chat activity: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ChatActivity
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.WarnContext(ctx, "dropping malformed chat activity",
						slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}
				userID := msg.Channel[len(activityChannelPrefix):]
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.ErrorContext(ctx, "panic in chat activity handler",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(userID, event)
				}()
			}
		}
	}()

	return nil
}
