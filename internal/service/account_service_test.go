package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"directchat/internal/cache"
	"directchat/internal/featureflags"
	"directchat/internal/models"
	"directchat/internal/repository"
	"directchat/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newIntegrationAccountService(t *testing.T, store *cache.Store) (*AccountService, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewAccountService(repository.NewUserRepository(db), store,
		featureflags.NewManager("user_search=on"), time.Minute, 5*time.Second)
	return svc, db
}

func TestAccountService_CreateAccount(t *testing.T) {
	svc, db := newIntegrationAccountService(t, nil)
	ctx := context.Background()
	testutil.CreateUser(t, db, "existing-uid", "taken_name")

	t.Run("Created with username", func(t *testing.T) {
		res, err := svc.CreateAccount(ctx, CreateAccountInput{ID: "uid-1", Email: "one@example.com", Username: "  New_User "})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.False(t, res.Partial)
		require.NotNil(t, res.User.Username)
		assert.Equal(t, "new_user", *res.User.Username)
	})

	t.Run("Username taken is partial success", func(t *testing.T) {
		res, err := svc.CreateAccount(ctx, CreateAccountInput{ID: "uid-2", Email: "two@example.com", Username: "taken_name"})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.True(t, res.Partial)
		assert.Contains(t, res.Message, "already taken")

		var stored models.User
		require.NoError(t, db.Where("id = ?", "uid-2").Take(&stored).Error)
		assert.Nil(t, stored.Username, "account kept without a username")
	})

	t.Run("Malformed username is partial success", func(t *testing.T) {
		res, err := svc.CreateAccount(ctx, CreateAccountInput{ID: "uid-3", Email: "three@example.com", Username: "no spaces!"})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.True(t, res.Partial)
	})

	t.Run("Existing account", func(t *testing.T) {
		res, err := svc.CreateAccount(ctx, CreateAccountInput{ID: "existing-uid", Email: "existing-uid@example.com"})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.False(t, res.Partial)
		assert.Equal(t, "account already exists", res.Message)
		assert.Equal(t, "taken_name", *res.User.Username)
	})

	t.Run("Email in use by another account", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, CreateAccountInput{ID: "uid-4", Email: "one@example.com"})
		require.Error(t, err)
		assert.Equal(t, models.CodeConflict, err.(*models.AppError).Code)
	})

	t.Run("Invalid email", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, CreateAccountInput{ID: "uid-5", Email: "not-an-email"})
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)
	})
}

func TestAccountService_CreateAccount_ConcurrentDuplicate(t *testing.T) {
	users := noopUserRepo()
	users.existsFn = func(context.Context, string) (bool, error) { return false, nil }
	users.createFn = func(context.Context, *models.User) error {
		// Another request inserted the same id between the check and the insert.
		users.existsFn = func(context.Context, string) (bool, error) { return true, nil }
		return models.NewConflictError("create user: conflicting write", nil)
	}
	svc := NewAccountService(users, nil, nil, 0, time.Second)

	res, err := svc.CreateAccount(context.Background(), CreateAccountInput{ID: "uid-1", Email: "a@example.com", Username: "someone"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "account already exists", res.Message)
}

func TestAccountService_CreateAccount_UsernameStoreFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		partial  bool
		wantCode string
	}{
		{"Taken", models.NewConflictError("set username: conflicting write", nil), true, ""},
		{"Store unavailable", models.NewTransientError("set username: store unavailable", nil), false, models.CodeTransient},
		{"Deadlock", models.NewRaceConflictError("set username: concurrent transaction won, retry", nil), false, models.CodeConflict},
		{"Internal", models.NewInternalError(errors.New("boom")), false, models.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := noopUserRepo()
			users.existsFn = func(context.Context, string) (bool, error) { return false, nil }
			users.createFn = func(context.Context, *models.User) error { return nil }
			users.setUsernameFn = func(context.Context, string, string) error { return tt.err }
			svc := NewAccountService(users, nil, nil, 0, time.Second)

			res, err := svc.CreateAccount(context.Background(), CreateAccountInput{ID: "uid-1", Email: "a@example.com", Username: "someone"})
			if tt.partial {
				require.NoError(t, err)
				assert.True(t, res.Partial)
				assert.True(t, res.Created)
				return
			}
			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.wantCode))
			assert.False(t, res.Partial)
		})
	}
}

func TestAccountService_UpdateUsername(t *testing.T) {
	svc, db := newIntegrationAccountService(t, nil)
	ctx := context.Background()
	testutil.CreateUser(t, db, "uid-1", "first")
	testutil.CreateUser(t, db, "uid-2", "second")

	user, err := svc.UpdateUsername(ctx, "uid-1", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", *user.Username)

	_, err = svc.UpdateUsername(ctx, "uid-1", "second")
	require.Error(t, err)
	appErr := err.(*models.AppError)
	assert.Equal(t, models.CodeConflict, appErr.Code)
	assert.Equal(t, 409, appErr.Status())

	_, err = svc.UpdateUsername(ctx, "uid-1", "admin")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)

	_, err = svc.UpdateUsername(ctx, "ghost", "ghostly")
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, err.(*models.AppError).Code)
}

func TestAccountService_FinalizeAccountSetup(t *testing.T) {
	tests := []struct {
		name    string
		in      SetupInput
		code    string
		display string
		picture string
	}{
		{name: "skip", in: SetupInput{RequestType: SetupSkip}},
		{name: "display name", in: SetupInput{RequestType: SetupDisplayName, DisplayName: " Ada "}, display: "Ada"},
		{name: "display name missing", in: SetupInput{RequestType: SetupDisplayName}, code: models.CodeValidation},
		{name: "all", in: SetupInput{RequestType: SetupAll, DisplayName: "Ada", ProfilePictureURL: "https://img.example.com/ada.png"}, display: "Ada", picture: "https://img.example.com/ada.png"},
		{name: "all missing picture", in: SetupInput{RequestType: SetupAll, DisplayName: "Ada"}, code: models.CodeValidation},
		{name: "all bad picture", in: SetupInput{RequestType: SetupAll, DisplayName: "Ada", ProfilePictureURL: "ada.png"}, code: models.CodeValidation},
		{name: "unknown type", in: SetupInput{RequestType: "everything"}, code: models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newIntegrationAccountService(t, nil)
			require.NoError(t, db.Create(&models.User{ID: "uid-1", Email: "a@example.com", Status: models.StatusOffline}).Error)

			user, err := svc.FinalizeAccountSetup(context.Background(), "uid-1", tt.in)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, err.(*models.AppError).Code)
				return
			}
			require.NoError(t, err)
			assert.True(t, user.IsProfileComplete)
			if tt.display != "" {
				assert.Equal(t, tt.display, *user.DisplayName)
			}
			if tt.picture != "" {
				assert.Equal(t, tt.picture, *user.ProfilePictureURL)
			}
		})
	}

	t.Run("missing user", func(t *testing.T) {
		svc, _ := newIntegrationAccountService(t, nil)
		_, err := svc.FinalizeAccountSetup(context.Background(), "ghost", SetupInput{RequestType: SetupSkip})
		require.Error(t, err)
		assert.Equal(t, models.CodeNotFound, err.(*models.AppError).Code)
	})
}

func TestAccountService_GetProfile_CacheAside(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc, db := newIntegrationAccountService(t, cache.NewStore(rdb))
	ctx := context.Background()
	testutil.CreateUser(t, db, "uid-1", "cached")

	user, err := svc.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "cached", *user.Username)
	assert.True(t, mr.Exists(cache.UserKey("uid-1")))

	// Served from the cache even though the row changed underneath.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", "uid-1").Update("display_name", "Changed Directly").Error)
	user, err = svc.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "User cached", *user.DisplayName)

	// Writes through the service invalidate it.
	_, err = svc.UpdateUsername(ctx, "uid-1", "renamed")
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.UserKey("uid-1")))

	user, err = svc.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", *user.Username)
	assert.Equal(t, "Changed Directly", *user.DisplayName)

	_, err = svc.GetProfile(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, err.(*models.AppError).Code)
}

func TestAccountService_CheckUsername(t *testing.T) {
	svc, db := newIntegrationAccountService(t, nil)
	ctx := context.Background()
	testutil.CreateUser(t, db, "uid-1", "claimed")

	got, err := svc.CheckUsername(ctx, "Claimed")
	require.NoError(t, err)
	assert.Equal(t, UsernameAvailability{Username: "claimed", IsAvailable: false}, got)

	got, err = svc.CheckUsername(ctx, "open_name")
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)

	_, err = svc.CheckUsername(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)
}

func TestAccountService_SearchUsers(t *testing.T) {
	svc, db := newIntegrationAccountService(t, nil)
	ctx := context.Background()
	testutil.CreateUser(t, db, "me", "searcher")
	testutil.CreateUser(t, db, "u1", "sam")
	testutil.CreateUser(t, db, "u2", "samantha")

	found, err := svc.SearchUsers(ctx, "me", "SAM", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "sam", *found[0].Username)

	_, err = svc.SearchUsers(ctx, "me", "  ", 10)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)
}

func TestAccountService_SearchUsers_Limits(t *testing.T) {
	users := noopUserRepo()
	var gotLimit int
	users.searchFn = func(_ context.Context, _, _ string, limit int) ([]models.User, error) {
		gotLimit = limit
		return nil, nil
	}
	svc := NewAccountService(users, nil, featureflags.NewManager("user_search=on"), 0, time.Second)

	_, err := svc.SearchUsers(context.Background(), "me", "a", 500)
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, gotLimit)

	_, err = svc.SearchUsers(context.Background(), "me", "a", -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchLimit, gotLimit)

	off := NewAccountService(users, nil, featureflags.NewManager("user_search=off"), 0, time.Second)
	_, err = off.SearchUsers(context.Background(), "me", "a", 10)
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)
}
