// Command seed fills the database with demo users, chats and messages.
package main

import (
	"context"
	"flag"
	"log"

	"directchat/internal/bootstrap"
	"directchat/internal/config"
	"directchat/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 20, "Number of users to create")
	numMessages := flag.Int("messages", 10, "Number of messages per chat")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	accounts, chats := rt.Services(cfg)
	s := seed.NewSeeder(rt.DB, accounts, chats, seed.Options{
		NumUsers:        *numUsers,
		MessagesPerChat: *numMessages,
		ShouldClean:     *shouldClean,
		Seed:            *randSeed,
	})

	sum, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d chats, %d messages", sum.Users, sum.Chats, sum.Messages)
}
