package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"order-relay/internal/domain"
	"order-relay/internal/objectstore"
)

const (
	DefaultKey = "teamsTalkerData.json"

	maxUpsertAttempts = 3
)

// Store is the participant directory backed by a single object.
type Store struct {
	objects objectstore.Store
	key     string
	keyFn   KeyFunc
	logger  *slog.Logger
}

func NewStore(objects objectstore.Store, key string, logger *slog.Logger) (*Store, error) {
	if objects == nil {
		return nil, errors.New("directory: object store must not be nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{objects: objects, key: key, keyFn: ByParticipant, logger: logger}, nil
}

// Load returns every record in the directory. A missing, unreadable or
// malformed document reads as empty.
func (s *Store) Load(ctx context.Context) ([]domain.Record, error) {
	records, _, err := s.load(ctx)
	return records, err
}

// load also returns the precondition for overwriting what it read: the
// document must still be absent, or still be at the etag that was read.
// Unreadable documents get no precondition and are overwritten.
func (s *Store) load(ctx context.Context) ([]domain.Record, objectstore.PutOptions, error) {
	obj, err := s.objects.Get(ctx, s.key)
	if objectstore.IsNotFound(err) {
		return nil, objectstore.PutOptions{IfNoneMatch: true}, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, objectstore.PutOptions{}, ctxErr
		}
		s.logger.Warn("directory read failed, treating as empty", "key", s.key, "err", err)
		return nil, objectstore.PutOptions{}, nil
	}
	cond := objectstore.PutOptions{IfMatch: obj.ETag}
	var records []domain.Record
	if err := json.Unmarshal(obj.Body, &records); err != nil {
		s.logger.Warn("directory document malformed, treating as empty", "key", s.key, "err", err)
		return nil, cond, nil
	}
	return records, cond, nil
}

// Upsert stores r as the only record for its identity, overwriting the whole
// document. The read-merge-write is repeated from a fresh read when a
// concurrent writer wins the race.
func (s *Store) Upsert(ctx context.Context, r domain.Record) error {
	return s.UpsertWith(ctx, r, nil)
}

// UpsertWith is Upsert with a hook that sees the stored record for r's
// identity, if any, and returns the record to write. The hook runs against
// every fresh read.
func (s *Store) UpsertWith(ctx context.Context, r domain.Record, combine func(prev, next domain.Record) domain.Record) error {
	if strings.TrimSpace(r.From.ID) == "" {
		return errors.New("directory: Upsert: from.id is required")
	}
	var lastErr error
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		existing, cond, err := s.load(ctx)
		if err != nil {
			return fmt.Errorf("directory: Upsert: %w", err)
		}
		next := r
		if combine != nil {
			if prev, ok := s.find(existing, s.keyFn(r)); ok {
				next = combine(prev, r)
			}
		}
		merged := Merge(existing, next, s.keyFn)
		body, err := encode(merged)
		if err != nil {
			return fmt.Errorf("directory: Upsert encode: %w", err)
		}
		_, err = s.objects.Put(ctx, s.key, body, cond)
		if err == nil {
			s.logger.Debug("directory upserted", "key", s.key, "participant", s.keyFn(next), "records", len(merged))
			return nil
		}
		if !objectstore.IsConflict(err) {
			return fmt.Errorf("directory: Upsert: %w", err)
		}
		lastErr = err
		s.logger.Warn("directory upsert conflict", "key", s.key, "attempt", attempt, "err", err)
	}
	return fmt.Errorf("directory: Upsert after %d attempts: %w", maxUpsertAttempts, lastErr)
}

func (s *Store) find(records []domain.Record, key string) (domain.Record, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if s.keyFn(records[i]) == key {
			return records[i], true
		}
	}
	return domain.Record{}, false
}

// KeepEmail carries a stored email forward when next has none.
func KeepEmail(prev, next domain.Record) domain.Record {
	if strings.TrimSpace(next.Email) == "" {
		next.Email = prev.Email
	}
	return next
}

// NormalizeResult summarizes a repair run.
type NormalizeResult struct {
	Records int
	Dropped int
	Changed bool
}

// Normalize repairs a document that was corrupted into concatenated objects
// and collapses duplicate identities. The document must exist.
func (s *Store) Normalize(ctx context.Context) (NormalizeResult, error) {
	obj, err := s.objects.Get(ctx, s.key)
	if err != nil {
		return NormalizeResult{}, fmt.Errorf("directory: Normalize read %s: %w", s.key, err)
	}
	body, records, dropped, err := NormalizeDocument(obj.Body, s.keyFn)
	if err != nil {
		return NormalizeResult{}, fmt.Errorf("directory: Normalize encode: %w", err)
	}
	res := NormalizeResult{Records: len(records), Dropped: dropped, Changed: string(body) != string(obj.Body)}
	if !res.Changed {
		return res, nil
	}
	if _, err := s.objects.Put(ctx, s.key, body, objectstore.PutOptions{IfMatch: obj.ETag}); err != nil {
		return NormalizeResult{}, fmt.Errorf("directory: Normalize write %s: %w", s.key, err)
	}
	s.logger.Info("directory normalized", "key", s.key, "records", res.Records, "dropped", res.Dropped)
	return res, nil
}

// FindByEmail returns the first record whose stored email matches,
// ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (domain.Record, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Record{}, false, nil
	}
	records, err := s.Load(ctx)
	if err != nil {
		return domain.Record{}, false, err
	}
	for _, r := range records {
		if strings.EqualFold(r.Email, email) {
			return r, true, nil
		}
	}
	return domain.Record{}, false, nil
}
