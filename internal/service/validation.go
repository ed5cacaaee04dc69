package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"directchat/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and reports the first failing
// field as a validation error.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewValidationError(err.Error())
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(fmt.Sprintf("%s is required", field))
	case "max":
		return models.NewValidationError(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "oneof":
		return models.NewValidationError(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "uuid":
		return models.NewValidationError(fmt.Sprintf("%s must be a valid id", field))
	default:
		return models.NewValidationError(fmt.Sprintf("%s is invalid", field))
	}
}

// Page size bounds shared by the list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxPage         = math.MaxInt32
)

// NormalizePage applies list defaults: page 1, DefaultPageSize items, at most
// MaxPageSize items per page.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// withStoreTimeout bounds ctx by the configured store timeout.
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
