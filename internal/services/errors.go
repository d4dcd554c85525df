package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/validator"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFragment = "unique constraint failed"
)

// duplicateKey reports whether err is a uniqueness violation from any supported driver.
func duplicateKey(err error) bool {
	var (
		pgErr *pgconn.PgError
		myErr *mysql.MySQLError
	)
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	case errors.As(err, &pgErr):
		return pgErr.Code == pgUniqueViolation
	case errors.As(err, &myErr):
		return myErr.Number == mysqlDuplicateEntry
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, sqliteUniqueFragment) || strings.Contains(msg, "duplicate")
}

// writeFailed maps a failed write to conflict when it hit a unique index. Application errors pass
// through untouched; anything else is wrapped with op.
func writeFailed(op string, err error, conflict error) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil, errors.As(err, &appErr):
		return err
	case conflict != nil && duplicateKey(err):
		return conflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

// invalidInput turns a validation failure into a 400 that names each failing field.
func invalidInput(err error) error {
	var failures validator.ValidationErrors
	if errors.As(err, &failures) {
		return apperrors.NewBadRequest(failures.Error()).WithFields(failures.Fields())
	}
	return apperrors.NewBadRequest(err.Error())
}
