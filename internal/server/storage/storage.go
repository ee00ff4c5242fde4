// Package storage holds document content. Objects are addressed by name;
// there is no content addressing.
package storage

import (
	"context"
)

// ObjectStore is the object storage used for document content. Get of a
// missing object returns an error wrapping common.ErrorNotFound; Delete of a
// missing object succeeds.
type ObjectStore interface {
	Put(ctx context.Context, name string, content []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
