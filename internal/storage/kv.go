// Package storage provides the key-value collaborators the engine
// persists through. The engine serializes its collections as JSON blobs
// under well-known keys; any backend that can store a string per key works.
package storage

import "context"

// KV is the storage collaborator interface. Get reports ok=false when the
// key has never been written (or was removed).
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
