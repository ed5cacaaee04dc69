package models

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestErrorResult(t *testing.T) {
	driverErr := errors.New(`ERROR: insert or update on table "messages" violates foreign key constraint "fk_messages_chat"`)

	tests := []struct {
		name      string
		err       *AppError
		kind      ResultKind
		status    int
		retryable bool
		details   string
	}{
		{
			name:    "Validation",
			err:     &AppError{Code: CodeValidation, Message: "bad input", Err: errors.New("content too long")},
			kind:    ResultClientError,
			status:  fiber.StatusBadRequest,
			details: "content too long",
		},
		{
			name:   "Not found from foreign key",
			err:    &AppError{Code: CodeNotFound, Message: "append message: referenced record not found", Err: driverErr},
			kind:   ResultClientError,
			status: fiber.StatusNotFound,
		},
		{
			name:   "Unique violation",
			err:    NewConflictError("set username: conflicting write", driverErr),
			kind:   ResultClientError,
			status: fiber.StatusConflict,
		},
		{
			name:      "Transaction race",
			err:       NewRaceConflictError("append message: concurrent transaction won, retry", driverErr),
			kind:      ResultServerError,
			status:    fiber.StatusServiceUnavailable,
			retryable: true,
		},
		{
			name:      "Transient",
			err:       NewTransientError("list chats: store unavailable", driverErr),
			kind:      ResultServerError,
			status:    fiber.StatusServiceUnavailable,
			retryable: true,
		},
		{
			name:   "Internal",
			err:    NewInternalError(driverErr),
			kind:   ResultServerError,
			status: fiber.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ErrorResult(tt.err)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.err.Code, r.Code)
			assert.Equal(t, tt.retryable, r.Retryable)
			assert.Equal(t, tt.details, r.Details)
			assert.Equal(t, tt.status, tt.err.Status())
		})
	}
}
