package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFoundKey = errors.New("key not found")
	ErrEmptyKey    = errors.New("empty key")
)

// Storage is an opaque key to bytes store.
type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
