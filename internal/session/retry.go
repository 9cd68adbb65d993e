package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"order-relay/internal/domain"
	"order-relay/internal/objectstore"
)

const DefaultMaxAttempts = 3

// ErrPersistConflict is returned once every save attempt hit a conflict.
var ErrPersistConflict = errors.New("session: persist failed after conflict retries")

// RetryError wraps the last conflict seen by SaveWithRetry.
type RetryError struct {
	ConversationID string
	Attempts       int
	Err            error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%v: conversation %s, %d attempts: %v", ErrPersistConflict, e.ConversationID, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

func (e *RetryError) Is(target error) bool { return target == ErrPersistConflict }

// LoadSaver is the part of Store the retry loop needs.
type LoadSaver interface {
	Load(ctx context.Context, conversationID string) (domain.ConversationSession, error)
	Save(ctx context.Context, sess *domain.ConversationSession) error
}

// SaveWithRetry saves sess, retrying on conflicts up to maxAttempts times.
// Between attempts only the etag is refreshed from the stored copy: the
// fields of sess are written as computed by the caller, not re-derived.
// Errors other than conflicts are returned immediately.
func SaveWithRetry(ctx context.Context, store LoadSaver, sess *domain.ConversationSession, maxAttempts int, logger *slog.Logger) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := store.Save(ctx, sess)
		if err == nil {
			return nil
		}
		if !objectstore.IsConflict(err) {
			return err
		}
		lastErr = err
		logger.Warn("session save conflict",
			"conversation_id", sess.ConversationID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"err", err,
		)
		if attempt == maxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		latest, err := store.Load(ctx, sess.ConversationID)
		var corrupt *CorruptError
		switch {
		case errors.As(err, &corrupt):
			sess.ETag = corrupt.ETag
		case err != nil:
			return fmt.Errorf("session: reload after conflict: %w", err)
		default:
			sess.ETag = latest.ETag
		}
	}
	return &RetryError{ConversationID: sess.ConversationID, Attempts: maxAttempts, Err: lastErr}
}

// Retrier binds SaveWithRetry to a store and attempt budget.
type Retrier struct {
	store       LoadSaver
	maxAttempts int
	logger      *slog.Logger
}

func NewRetrier(store LoadSaver, maxAttempts int, logger *slog.Logger) (*Retrier, error) {
	if store == nil {
		return nil, errors.New("session: store must not be nil")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{store: store, maxAttempts: maxAttempts, logger: logger}, nil
}

func (r *Retrier) Load(ctx context.Context, conversationID string) (domain.ConversationSession, error) {
	return r.store.Load(ctx, conversationID)
}

func (r *Retrier) Save(ctx context.Context, sess *domain.ConversationSession) error {
	return SaveWithRetry(ctx, r.store, sess, r.maxAttempts, r.logger)
}
