package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"directchat/internal/cache"
	"directchat/internal/featureflags"
	"directchat/internal/models"
	"directchat/internal/observability"
	"directchat/internal/repository"
	"directchat/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Search limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// Setup request types accepted by FinalizeAccountSetup.
const (
	SetupSkip        = "skip"
	SetupDisplayName = "displayName"
	SetupAll         = "all"
)

// AccountService manages the user records that chats refer to.
type AccountService struct {
	users        repository.UserRepository
	cache        *cache.Store
	flags        *featureflags.Manager
	profileTTL   time.Duration
	storeTimeout time.Duration
}

// NewAccountService returns a new AccountService. A nil or disabled cache
// store reads every profile from the database.
func NewAccountService(
	users repository.UserRepository,
	store *cache.Store,
	flags *featureflags.Manager,
	profileTTL time.Duration,
	storeTimeout time.Duration,
) *AccountService {
	if profileTTL <= 0 {
		profileTTL = cache.UserTTL
	}
	return &AccountService{
		users:        users,
		cache:        store,
		flags:        flags,
		profileTTL:   profileTTL,
		storeTimeout: storeTimeout,
	}
}

// CreateAccountInput is the input for registering the caller's account.
type CreateAccountInput struct {
	ID       string `validate:"required,max=128"`
	Email    string `validate:"required,email,max=255"`
	Username string
}

// CreateAccountResult reports how much of CreateAccount was applied.
// Partial means the account exists but the requested username was not set.
type CreateAccountResult struct {
	User    *models.User
	Created bool
	Partial bool
	Message string
}

// CreateAccount inserts the account, then tries to claim the username in a
// separate statement. A taken or malformed username does not undo the
// account; the result is marked Partial instead. Any other username failure
// is returned as is.
func (s *AccountService) CreateAccount(ctx context.Context, in CreateAccountInput) (res CreateAccountResult, err error) {
	span, ctx := observability.StartSpan(ctx, "account.create", attribute.String("user.id", in.ID))
	defer func() { span.End(err) }()

	in.ID = strings.TrimSpace(in.ID)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = validation.NormalizeUsername(in.Username)
	if err := validateInput(in); err != nil {
		return res, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.users.Exists(ctx, in.ID)
	if err != nil {
		return res, err
	}
	if exists {
		return s.alreadyExists(ctx, in.ID)
	}

	user := &models.User{
		ID:       in.ID,
		Email:    in.Email,
		Status:   models.StatusOffline,
		LastSeen: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !models.HasCode(err, models.CodeConflict) {
			return res, err
		}
		// Either a concurrent request created this id, or the email is taken.
		raced, existsErr := s.users.Exists(ctx, in.ID)
		if existsErr == nil && raced {
			return s.alreadyExists(ctx, in.ID)
		}
		return res, models.NewConflictError("email already in use", err)
	}

	res = CreateAccountResult{User: user, Created: true, Message: "account created"}
	if in.Username == "" {
		return res, nil
	}

	if verr := validation.ValidateUsername(in.Username); verr != nil {
		res.Partial = true
		res.Message = "account created, username not set: " + verr.Error()
		return res, nil
	}
	if serr := s.users.SetUsername(ctx, in.ID, in.Username); serr != nil {
		if appErr := models.AsAppError(serr); appErr.Code == models.CodeConflict && !appErr.Race {
			res.Partial = true
			res.Message = "account created, username already taken"
			return res, nil
		}
		// The account row is kept; a retry reports it as existing and the
		// username can be claimed with UpdateUsername.
		slog.ErrorContext(ctx, "account created but username not set",
			slog.String("user_id", in.ID), slog.String("error", serr.Error()))
		return CreateAccountResult{}, serr
	}
	username := in.Username
	user.Username = &username
	return res, nil
}

func (s *AccountService) alreadyExists(ctx context.Context, id string) (CreateAccountResult, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return CreateAccountResult{}, err
	}
	return CreateAccountResult{User: user, Message: "account already exists"}, nil
}

// UpdateUsername sets a new username. A taken username is a Conflict.
func (s *AccountService) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	username = validation.NormalizeUsername(username)
	if username == "" {
		return nil, models.NewValidationError("username is required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.SetUsername(ctx, id, username); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			return nil, models.NewConflictError("username already taken", nil)
		}
		return nil, err
	}
	s.cache.InvalidateUser(ctx, id)
	return s.users.GetByID(ctx, id)
}

// SetupInput carries the fields of an account setup step.
type SetupInput struct {
	RequestType       string
	DisplayName       string `validate:"max=255"`
	ProfilePictureURL string `validate:"omitempty,url,max=2048"`
}

// FinalizeAccountSetup completes the profile. "skip" only marks it complete,
// "displayName" also sets the display name, and "all" sets the display name
// and profile picture.
func (s *AccountService) FinalizeAccountSetup(ctx context.Context, id string, in SetupInput) (*models.User, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.ProfilePictureURL = strings.TrimSpace(in.ProfilePictureURL)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	complete := true
	update := repository.ProfileUpdate{IsProfileComplete: &complete}
	switch in.RequestType {
	case SetupSkip:
	case SetupDisplayName:
		if in.DisplayName == "" {
			return nil, models.NewValidationError("displayName is required")
		}
		update.DisplayName = &in.DisplayName
	case SetupAll:
		if in.DisplayName == "" || in.ProfilePictureURL == "" {
			return nil, models.NewValidationError("displayName and profilePictureUrl are required")
		}
		update.DisplayName = &in.DisplayName
		update.ProfilePictureURL = &in.ProfilePictureURL
	default:
		return nil, models.NewValidationError("requestType must be one of: skip displayName all")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.users.UpdateProfile(ctx, id, update); err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, id)
	return s.users.GetByID(ctx, id)
}

// GetProfile returns the account of id, served from the profile cache when possible.
func (s *AccountService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var user models.User
	err := s.cache.CacheAside(ctx, cache.UserKey(id), &user, s.profileTTL, func() error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameAvailability answers CheckUsername.
type UsernameAvailability struct {
	Username    string `json:"username"`
	IsAvailable bool   `json:"isAvailable"`
}

// CheckUsername reports whether username is well formed and unclaimed.
func (s *AccountService) CheckUsername(ctx context.Context, username string) (UsernameAvailability, error) {
	username = validation.NormalizeUsername(username)
	if username == "" {
		return UsernameAvailability{}, models.NewValidationError("username is required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return UsernameAvailability{}, models.NewValidationError(err.Error())
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	taken, err := s.users.UsernameTaken(ctx, username)
	if err != nil {
		return UsernameAvailability{}, err
	}
	return UsernameAvailability{Username: username, IsAvailable: !taken}, nil
}

// SearchUsers finds completed profiles whose username contains query.
func (s *AccountService) SearchUsers(ctx context.Context, callerID, query string, limit int) ([]models.UserProfile, error) {
	if !s.flags.Enabled(featureflags.UserSearch, callerID) {
		return nil, models.NewForbiddenError("user search is not enabled")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("search query is required")
	}
	if limit < 1 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	users, err := s.users.Search(ctx, callerID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Profile())
	}
	return out, nil
}
