package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the store reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
	pgTooManyConnections   = "53300"
)

// classify maps driver and gorm errors onto the store sentinels.
// Errors it does not recognise are returned unchanged.
func classify(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return unavailable(err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return &DuplicateKeyError{Field: duplicateField(sqliteErr.Error())}
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return ErrNotFound
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return unavailable(err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &DuplicateKeyError{Field: duplicateField(pgErr.ConstraintName + " " + pgErr.Detail)}
		case pgForeignKeyViolation:
			return ErrNotFound
		case pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled, pgAdminShutdown, pgTooManyConnections:
			return unavailable(err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return unavailable(err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &DuplicateKeyError{}
	}
	return err
}

// duplicateField extracts the user column named by a unique violation.
func duplicateField(msg string) string {
	switch {
	case strings.Contains(msg, "username"):
		return "username"
	case strings.Contains(msg, "email"):
		return "email"
	}
	return ""
}
