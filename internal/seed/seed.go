package seed

import (
	"context"
	"fmt"
	"log/slog"

	"directchat/internal/models"
	"directchat/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	MessagesPerChat int
	ShouldClean     bool
	// Seed makes the generated data reproducible when non-zero.
	Seed int64
}

// Summary counts what a seeding run created.
type Summary struct {
	Users    int
	Chats    int
	Messages int
}

// Seeder creates demo data through the same services the API uses, so
// seeded chats carry correct latest-message pointers and activity times.
type Seeder struct {
	db       *gorm.DB
	accounts *service.AccountService
	chats    *service.ChatService
	factory  *Factory
	opts     Options
}

// NewSeeder returns a Seeder. db is only used to clear existing data.
func NewSeeder(db *gorm.DB, accounts *service.AccountService, chats *service.ChatService, opts Options) *Seeder {
	return &Seeder{
		db:       db,
		accounts: accounts,
		chats:    chats,
		factory:  NewFactory(opts.Seed),
		opts:     opts,
	}
}

// Run creates NumUsers accounts with completed profiles, then a private chat
// between the first account and each other one holding MessagesPerChat
// messages that alternate between the two participants.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	slog.InfoContext(ctx, "seeding database",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("messages_per_chat", s.opts.MessagesPerChat),
	)

	if s.opts.ShouldClean {
		if err := ClearAll(ctx, s.db); err != nil {
			return sum, fmt.Errorf("clear data: %w", err)
		}
	}

	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.createUser(ctx, i)
		if err != nil {
			return sum, fmt.Errorf("create user %d: %w", i, err)
		}
		users = append(users, user)
	}
	sum.Users = len(users)
	if len(users) < 2 {
		return sum, nil
	}

	owner := users[0]
	for _, other := range users[1:] {
		resolved, err := s.chats.ResolvePrivateChat(ctx, owner.ID, other.ID)
		if err != nil {
			return sum, fmt.Errorf("resolve chat with %s: %w", other.ID, err)
		}
		sum.Chats++

		for n := 0; n < s.opts.MessagesPerChat; n++ {
			sender := owner.ID
			if n%2 == 1 {
				sender = other.ID
			}
			if _, err := s.chats.AppendMessage(ctx, s.factory.Message(resolved.ChatID, sender, n)); err != nil {
				return sum, fmt.Errorf("append message to %s: %w", resolved.ChatID, err)
			}
			sum.Messages++
		}
	}

	slog.InfoContext(ctx, "seeding completed",
		slog.Int("users", sum.Users),
		slog.Int("chats", sum.Chats),
		slog.Int("messages", sum.Messages),
	)
	return sum, nil
}

func (s *Seeder) createUser(ctx context.Context, n int) (*models.User, error) {
	fake := s.factory.Account(n)

	res, err := s.accounts.CreateAccount(ctx, fake.Account)
	if err != nil {
		return nil, err
	}
	if res.Partial {
		slog.WarnContext(ctx, "seeded account without username",
			slog.String("user_id", fake.Account.ID),
			slog.String("reason", res.Message),
		)
	}
	return s.accounts.FinalizeAccountSetup(ctx, fake.Account.ID, fake.Setup)
}

// ClearAll deletes every chat, message and user.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	slog.InfoContext(ctx, "clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		// Chats point at their latest message, so break that link first.
		if err := all.Model(&models.Chat{}).Update("last_message_id", nil).Error; err != nil {
			return err
		}
		for _, m := range []any{
			&models.MessageReadReceipt{},
			&models.Message{},
			&models.ChatParticipant{},
			&models.GroupChatDetails{},
			&models.Chat{},
			&models.User{},
		} {
			if err := all.Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
