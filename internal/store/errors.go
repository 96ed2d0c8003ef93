package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an optimistic update matched no row
	// because the stored version moved on.
	ErrConflict = errors.New("version conflict")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	ErrDuplicateKey = errors.New("duplicate key")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	return err
}
