// Package storage stores document bytes and mints time-limited download links.
package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultURLExpiry is the lifetime of a minted download link.
const DefaultURLExpiry = time.Hour

var ErrEmptyKey = errors.New("storage: empty object key")

// ObjectStore provides access to object storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
