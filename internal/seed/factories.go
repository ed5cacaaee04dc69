// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"

	"directchat/internal/models"
	"directchat/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// maxUsernameStem leaves room for the numeric suffix within the 30 character limit.
const maxUsernameStem = 20

// Factory builds fake inputs for the account and chat services.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. A zero seed draws a random one; any other
// value makes the generated data reproducible.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// FakeAccount is a generated account with the profile fields used to finish setup.
type FakeAccount struct {
	Account service.CreateAccountInput
	Setup   service.SetupInput
}

// Account builds the n-th fake account. n keeps ids, emails and usernames unique.
func (f *Factory) Account(n int) FakeAccount {
	person := f.faker.Person()
	username := Username(person.FirstName+"_"+person.LastName, n)

	return FakeAccount{
		Account: service.CreateAccountInput{
			ID:       "seed-" + f.faker.UUID(),
			Email:    fmt.Sprintf("%s@example.com", username),
			Username: username,
		},
		Setup: service.SetupInput{
			RequestType:       service.SetupAll,
			DisplayName:       person.FirstName + " " + person.LastName,
			ProfilePictureURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		},
	}
}

// Message builds the n-th fake message of a conversation. Every fifth one is
// an image.
func (f *Factory) Message(chatID, senderID string, n int) service.AppendMessageInput {
	in := service.AppendMessageInput{
		ChatID:          chatID,
		SenderID:        senderID,
		Content:         f.faker.Sentence(f.faker.Number(3, 12)),
		Type:            models.MessageTypeText,
		ClientMessageID: fmt.Sprintf("seed-%d", n),
	}
	if n%5 == 4 {
		in.Type = models.MessageTypeImage
		in.Content = ""
		in.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
	}
	return in
}

// Username reduces name to the allowed username alphabet and appends n.
func Username(name string, n int) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		}
		if sb.Len() == maxUsernameStem {
			break
		}
	}
	stem := strings.Trim(sb.String(), "_")
	if stem == "" {
		stem = "user"
	}
	return fmt.Sprintf("%s_%d", stem, n)
}
