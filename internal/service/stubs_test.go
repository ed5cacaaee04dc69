package service

import (
	"context"

	"directchat/internal/models"
	"directchat/internal/repository"
)

type chatRepoStub struct {
	findPrivateFn    func(context.Context, string) (*models.Chat, error)
	createPrivateFn  func(context.Context, string, string, string) (*models.Chat, bool, error)
	isParticipantFn  func(context.Context, string, string) (bool, error)
	participantIDsFn func(context.Context, string) ([]string, error)
	countPrivateFn   func(context.Context, string) (int64, error)
	listSummariesFn  func(context.Context, string, int, int) ([]models.ChatSummary, error)
}

func (s *chatRepoStub) FindPrivateByPairKey(ctx context.Context, pairKey string) (*models.Chat, error) {
	return s.findPrivateFn(ctx, pairKey)
}
func (s *chatRepoStub) CreatePrivate(ctx context.Context, pairKey, a, b string) (*models.Chat, bool, error) {
	return s.createPrivateFn(ctx, pairKey, a, b)
}
func (s *chatRepoStub) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	return s.isParticipantFn(ctx, chatID, userID)
}
func (s *chatRepoStub) ParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	return s.participantIDsFn(ctx, chatID)
}
func (s *chatRepoStub) CountPrivate(ctx context.Context, userID string) (int64, error) {
	return s.countPrivateFn(ctx, userID)
}
func (s *chatRepoStub) ListPrivateSummaries(ctx context.Context, userID string, limit, offset int) ([]models.ChatSummary, error) {
	return s.listSummariesFn(ctx, userID, limit, offset)
}

func noopChatRepo() *chatRepoStub {
	return &chatRepoStub{
		findPrivateFn: func(context.Context, string) (*models.Chat, error) { return nil, nil },
		createPrivateFn: func(context.Context, string, string, string) (*models.Chat, bool, error) {
			return &models.Chat{ID: "chat-1", Type: models.ChatTypePrivate}, true, nil
		},
		isParticipantFn:  func(context.Context, string, string) (bool, error) { return true, nil },
		participantIDsFn: func(context.Context, string) ([]string, error) { return nil, nil },
		countPrivateFn:   func(context.Context, string) (int64, error) { return 0, nil },
		listSummariesFn:  func(context.Context, string, int, int) ([]models.ChatSummary, error) { return nil, nil },
	}
}

type userRepoStub struct {
	getByIDFn       func(context.Context, string) (*models.User, error)
	existsFn        func(context.Context, string) (bool, error)
	createFn        func(context.Context, *models.User) error
	setUsernameFn   func(context.Context, string, string) error
	updateProfileFn func(context.Context, string, repository.ProfileUpdate) error
	usernameTakenFn func(context.Context, string) (bool, error)
	searchFn        func(context.Context, string, string, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) Exists(ctx context.Context, id string) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) SetUsername(ctx context.Context, id, username string) error {
	return s.setUsernameFn(ctx, id, username)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate) error {
	return s.updateProfileFn(ctx, id, update)
}
func (s *userRepoStub) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.usernameTakenFn(ctx, username)
}
func (s *userRepoStub) Search(ctx context.Context, callerID, query string, limit int) ([]models.User, error) {
	return s.searchFn(ctx, callerID, query, limit)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id string) (*models.User, error) { return &models.User{ID: id}, nil },
		existsFn:        func(context.Context, string) (bool, error) { return true, nil },
		createFn:        func(context.Context, *models.User) error { return nil },
		setUsernameFn:   func(context.Context, string, string) error { return nil },
		updateProfileFn: func(context.Context, string, repository.ProfileUpdate) error { return nil },
		usernameTakenFn: func(context.Context, string) (bool, error) { return false, nil },
		searchFn:        func(context.Context, string, string, int) ([]models.User, error) { return nil, nil },
	}
}

type messageRepoStub struct {
	appendFn   func(context.Context, *models.Message) (*models.Message, bool, error)
	listFn     func(context.Context, string, int, int) ([]models.Message, error)
	countFn    func(context.Context, string) (int64, error)
	markReadFn func(context.Context, string, string) (int64, error)
}

func (s *messageRepoStub) Append(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	return s.appendFn(ctx, msg)
}
func (s *messageRepoStub) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]models.Message, error) {
	return s.listFn(ctx, chatID, limit, offset)
}
func (s *messageRepoStub) CountByChat(ctx context.Context, chatID string) (int64, error) {
	return s.countFn(ctx, chatID)
}
func (s *messageRepoStub) MarkRead(ctx context.Context, chatID, userID string) (int64, error) {
	return s.markReadFn(ctx, chatID, userID)
}

func noopMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		appendFn: func(_ context.Context, msg *models.Message) (*models.Message, bool, error) {
			msg.ID = "msg-1"
			return msg, false, nil
		},
		listFn:     func(context.Context, string, int, int) ([]models.Message, error) { return nil, nil },
		countFn:    func(context.Context, string) (int64, error) { return 0, nil },
		markReadFn: func(context.Context, string, string) (int64, error) { return 0, nil },
	}
}
