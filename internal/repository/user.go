package repository

import (
	"context"
	"errors"
	"strings"

	"directchat/internal/models"
	"directchat/internal/observability"
	"directchat/internal/validation"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	SetUsername(ctx context.Context, id, username string) error
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Search(ctx context.Context, callerID, query string, limit int) ([]models.User, error)
}

// ProfileUpdate lists the profile columns a setup step may change. Nil
// pointers leave the column untouched.
type ProfileUpdate struct {
	DisplayName       *string
	ProfilePictureURL *string
	IsProfileComplete *bool
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users", nil)}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackQuery("get_by_id", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, storeError(ctx, r.log, "get user", err)
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return false, storeError(ctx, r.log, "check user", err)
	}
	return count > 0, nil
}

// Create inserts user. A duplicate id or email is a Conflict.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", "users")()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return storeError(ctx, r.log, "create user", err)
	}
	return nil
}

// SetUsername assigns a username. A taken username is a Conflict.
func (r *userRepository) SetUsername(ctx context.Context, id, username string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("username", username)
	if res.Error != nil {
		return storeError(ctx, r.log, "set username", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error {
	cols := map[string]interface{}{}
	if update.DisplayName != nil {
		cols["display_name"] = *update.DisplayName
	}
	if update.ProfilePictureURL != nil {
		cols["profile_picture_url"] = *update.ProfilePictureURL
	}
	if update.IsProfileComplete != nil {
		cols["is_profile_complete"] = *update.IsProfileComplete
	}
	if len(cols) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return storeError(ctx, r.log, "update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Limit(1).Count(&count).Error
	if err != nil {
		return false, storeError(ctx, r.log, "check username", err)
	}
	return count > 0, nil
}

// Search matches usernames case-insensitively, treating query literally.
// Only completed profiles are returned and the caller is excluded.
func (r *userRepository) Search(ctx context.Context, callerID, query string, limit int) ([]models.User, error) {
	defer observability.TrackQuery("search", "users")()

	pattern := "%" + validation.EscapeLike(strings.ToLower(query)) + "%"
	var users []models.User
	err := r.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\'`, pattern).
		Where("is_profile_complete = ?", true).
		Where("id <> ?", callerID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "search users", err)
	}
	return users, nil
}
