// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"directchat/internal/models"
	"directchat/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// classify maps a store error to an AppError code. Unique violations,
// serialization failures and deadlocks are conflicts; connection loss,
// timeouts and cancellations are transient.
func classify(err error) string {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.CodeConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return models.CodeNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn):
		return models.CodeTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return models.CodeConflict
		case pgErr.Code == "23503":
			return models.CodeNotFound
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "57P01", pgErr.Code == "57014", pgErr.Code == "53300":
			return models.CodeTransient
		}
		return models.CodeInternal
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return models.CodeTransient
	}

	// sqlite reports contention as SQLITE_BUSY / SQLITE_LOCKED.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return models.CodeTransient
	}
	return models.CodeInternal
}

// isTransactionRace reports whether err is a serialization failure, deadlock
// or lock timeout rather than a constraint violation.
func isTransactionRace(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// translateError converts a driver or gorm error into an AppError. AppErrors
// pass through unchanged.
func translateError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch classify(err) {
	case models.CodeConflict:
		if isTransactionRace(err) {
			return models.NewRaceConflictError(message+": concurrent transaction won, retry", err)
		}
		return models.NewConflictError(message+": conflicting write", err)
	case models.CodeNotFound:
		return &models.AppError{Code: models.CodeNotFound, Message: message + ": referenced record not found", Err: err}
	case models.CodeTransient:
		return models.NewTransientError(message+": store unavailable", err)
	default:
		return models.NewInternalError(err)
	}
}

// storeError translates err, records it and logs anything that is not an
// expected conflict.
func storeError(ctx context.Context, log *observability.RepoLogger, operation string, err error) error {
	if err == nil {
		return nil
	}
	translated := translateError(err, operation)
	code := models.AsAppError(translated).Code
	observability.StoreErrors.WithLabelValues(code).Inc()
	if code != models.CodeConflict && code != models.CodeNotFound {
		log.LogError(ctx, operation, code, err)
	}
	return translated
}
