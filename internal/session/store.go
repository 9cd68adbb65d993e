// Package session persists per-conversation dialog state in the object store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-relay/internal/domain"
	"order-relay/internal/objectstore"
)

const DefaultKeyPrefix = "session/"

// CorruptError reports a stored session that could not be decoded. ETag is
// the version of the bad document, so a save can replace it conditionally.
type CorruptError struct {
	ConversationID string
	ETag           string
	Err            error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("session: Load %s decode: %v", e.ConversationID, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store loads and saves one JSON document per conversation. Saves are
// conditional on the etag the session was loaded with.
type Store struct {
	objects objectstore.Store
	prefix  string
	now     func() time.Time
}

func NewStore(objects objectstore.Store, prefix string) (*Store, error) {
	if objects == nil {
		return nil, errors.New("session: object store must not be nil")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{objects: objects, prefix: prefix, now: time.Now}, nil
}

func (s *Store) key(conversationID string) string {
	return s.prefix + conversationID + ".json"
}

// Load returns the stored session, or a fresh one when none exists. A
// document that cannot be decoded yields a fresh session at the bad
// document's etag together with a *CorruptError.
func (s *Store) Load(ctx context.Context, conversationID string) (domain.ConversationSession, error) {
	if strings.TrimSpace(conversationID) == "" {
		return domain.ConversationSession{}, errors.New("session: conversation id is required")
	}
	obj, err := s.objects.Get(ctx, s.key(conversationID))
	if objectstore.IsNotFound(err) {
		return domain.NewSession(conversationID), nil
	}
	if err != nil {
		return domain.ConversationSession{}, fmt.Errorf("session: Load %s: %w", conversationID, err)
	}
	var sess domain.ConversationSession
	if err := json.Unmarshal(obj.Body, &sess); err != nil {
		fresh := domain.NewSession(conversationID)
		fresh.ETag = obj.ETag
		return fresh, &CorruptError{ConversationID: conversationID, ETag: obj.ETag, Err: err}
	}
	sess.ConversationID = conversationID
	sess.ETag = obj.ETag
	sess.Normalize()
	return sess, nil
}

// Save writes sess conditionally: a session without an etag must not exist
// yet, any other must still be at its etag. On success sess.ETag is updated.
func (s *Store) Save(ctx context.Context, sess *domain.ConversationSession) error {
	if sess == nil || strings.TrimSpace(sess.ConversationID) == "" {
		return errors.New("session: Save: conversation id is required")
	}
	sess.Normalize()
	sess.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: Save %s encode: %w", sess.ConversationID, err)
	}
	opts := objectstore.PutOptions{IfMatch: sess.ETag, IfNoneMatch: sess.ETag == ""}
	etag, err := s.objects.Put(ctx, s.key(sess.ConversationID), body, opts)
	if err != nil {
		return fmt.Errorf("session: Save %s: %w", sess.ConversationID, err)
	}
	sess.ETag = etag
	return nil
}

// Delete removes the conversation's session document.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("session: Delete: conversation id is required")
	}
	if err := s.objects.Delete(ctx, s.key(conversationID)); err != nil {
		return fmt.Errorf("session: Delete %s: %w", conversationID, err)
	}
	return nil
}
