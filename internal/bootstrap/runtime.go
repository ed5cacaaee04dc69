// Package bootstrap wires the process-wide dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"directchat/internal/cache"
	"directchat/internal/config"
	"directchat/internal/database"
	"directchat/internal/featureflags"
	"directchat/internal/repository"
	"directchat/internal/seed"
	"directchat/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty development database with demo users and chats.
	SeedDemoData bool
	DemoUsers    int
}

// Runtime holds the connections a command runs on. Redis may be nil.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	rdb := cache.NewClient(ctx, cfg.RedisURL)

	rt := &Runtime{DB: db, Redis: rdb}
	if opts.SeedDemoData {
		if err := seedDemoData(ctx, cfg, rt, opts.DemoUsers); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}
	return rt, nil
}

// Services builds the account and chat services over the runtime's connections.
func (rt *Runtime) Services(cfg *config.Config) (*service.AccountService, *service.ChatService) {
	users := repository.NewUserRepository(rt.DB)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	accounts := service.NewAccountService(users, cache.NewStore(rt.Redis), flags, cfg.ProfileCacheTTL, cfg.StoreTimeout)
	chats := service.NewChatService(
		repository.NewChatRepository(rt.DB), users, repository.NewMessageRepository(rt.DB),
		nil, flags, cfg.StoreTimeout,
	)
	return accounts, chats
}

// Close releases the runtime's connections.
func (rt *Runtime) Close() {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if sqlDB, err := rt.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func seedDemoData(ctx context.Context, cfg *config.Config, rt *Runtime, users int) error {
	if !strings.EqualFold(cfg.Env, "development") {
		slog.WarnContext(ctx, "demo seeding skipped outside development", slog.String("env", cfg.Env))
		return nil
	}

	var existing int64
	if err := rt.DB.WithContext(ctx).Table("users").Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	if users <= 0 {
		users = 10
	}
	accounts, chats := rt.Services(cfg)
	_, err := seed.NewSeeder(rt.DB, accounts, chats, seed.Options{NumUsers: users, MessagesPerChat: 8}).Run(ctx)
	return err
}
