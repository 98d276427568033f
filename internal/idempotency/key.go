// Package idempotency generates and validates the Idempotency-Key values
// attached to create requests, so a retried POST cannot create a duplicate.
package idempotency

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the key.
const Header = "Idempotency-Key"

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

var (
	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// NewKey returns a fresh random key.
func NewKey() string {
	return uuid.NewString()
}

// ValidateKey checks if an idempotency key is valid.
// Returns ErrInvalidKey if the key is empty.
// Returns ErrKeyTooLong if the key exceeds MaxKeyLength.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

type keyCtx struct{}

// WithKey pins the key for a logical operation so every retry of that
// operation sends the same value.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyCtx{}, key)
}

// FromContext returns the pinned key, or a new one if none is pinned.
func FromContext(ctx context.Context) string {
	if key, ok := ctx.Value(keyCtx{}).(string); ok && key != "" {
		return key
	}
	return NewKey()
}
