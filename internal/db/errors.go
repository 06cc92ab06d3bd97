package db

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrForeignKey   = errors.New("foreign key constraint violation")
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate checks if error is a duplicate error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// MapGormError maps GORM and SQLite errors to repository errors
func MapGormError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}

	// SQLite reports constraint failures only in the message text
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "unique constraint", "primary key must be unique"):
		return ErrDuplicate
	case containsAny(msg, "foreign key constraint"):
		return ErrForeignKey
	}

	return err
}

func containsAny(s string, substrs ...string) bool {
	return lo.SomeBy(substrs, func(sub string) bool { return strings.Contains(s, sub) })
}
