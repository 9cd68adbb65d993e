// Package objectstore defines the key/value blob contract used for session
// snapshots and the participant directory document.
package objectstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("objectstore: not found")
	ErrConflict = errors.New("objectstore: conflict")
)

// ConflictError reports a failed precondition on Put.
type ConflictError struct {
	Key          string
	ExpectedETag string
}

func (e *ConflictError) Error() string {
	if e.ExpectedETag == "" {
		return fmt.Sprintf("objectstore: conflict on %q: object already exists", e.Key)
	}
	return fmt.Sprintf("objectstore: conflict on %q: etag %q is stale", e.Key, e.ExpectedETag)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Object is a stored blob and the version it was read at. An object that
// exists always reports a non-empty ETag.
type Object struct {
	Body []byte
	ETag string
}

// PutOptions are the preconditions for a write. The zero value writes
// unconditionally.
type PutOptions struct {
	// IfMatch requires the stored object to carry this etag.
	IfMatch string
	// IfNoneMatch requires that no object exists under the key.
	IfNoneMatch bool
}

// Store is a blob store with optional conditional writes.
type Store interface {
	Get(ctx context.Context, key string) (Object, error)
	Put(ctx context.Context, key string, body []byte, opts PutOptions) (string, error)
	Delete(ctx context.Context, key string) error
}

// IsConflict reports whether err is a precondition failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err is a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
