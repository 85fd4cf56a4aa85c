package storage

import (
	"errors"
	"strings"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Common storage errors.
var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")
)

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Transient wraps a retriable storage failure with its error kind.
func Transient(err error, message string) error {
	return directive.Wrap(directive.KindPersistenceTransient, err, message)
}

// Terminal wraps an unrecoverable storage failure with its error kind.
func Terminal(err error, message string) error {
	return directive.Wrap(directive.KindPersistenceTerminal, err, message)
}

// IsTransient reports whether err is a retriable storage failure.
func IsTransient(err error) bool {
	return directive.IsKind(err, directive.KindPersistenceTransient)
}

// isNotFoundKV checks if a KV error indicates a key was not found.
func isNotFoundKV(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
