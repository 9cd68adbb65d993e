package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"order-relay/internal/directory"
	"order-relay/internal/domain"
)

// DirectoryStore is the participant directory the relay reads and writes.
type DirectoryStore interface {
	Load(ctx context.Context) ([]domain.Record, error)
	UpsertWith(ctx context.Context, r domain.Record, combine func(prev, next domain.Record) domain.Record) error
	FindByEmail(ctx context.Context, email string) (domain.Record, bool, error)
}

// Participants records who the relay has talked to.
type Participants struct {
	directory  DirectoryStore
	identities EmailResolver
	logger     *slog.Logger
	now        func() time.Time
}

// NewParticipants builds the ingest service. identities may be nil, in
// which case records carry no email.
func NewParticipants(directory DirectoryStore, identities EmailResolver, logger *slog.Logger) (*Participants, error) {
	if directory == nil {
		return nil, errors.New("usecase: directory store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Participants{directory: directory, identities: identities, logger: logger, now: time.Now}, nil
}

// Record upserts the sender of a. Email lookup is best-effort: when it
// cannot run or fails, the email already on file is kept.
func (p *Participants) Record(ctx context.Context, a domain.Activity) error {
	if strings.TrimSpace(a.From.ID) == "" {
		return newError(ErrorInvalidInput, "activity has no sender", nil)
	}
	rec := domain.RecordFromActivity(a, p.now())
	var combine func(prev, next domain.Record) domain.Record
	email, ok := p.lookupEmail(ctx, a.From)
	if ok {
		rec.Email = email
	} else {
		combine = directory.KeepEmail
	}
	if err := p.directory.UpsertWith(ctx, rec, combine); err != nil {
		return fmt.Errorf("usecase: record participant: %w", err)
	}
	return nil
}

func (p *Participants) lookupEmail(ctx context.Context, from domain.ChannelAccount) (string, bool) {
	if p.identities == nil {
		return "", false
	}
	id := from.AADObjectID
	if id == "" {
		id = from.ID
	}
	email, err := p.identities.ResolveEmail(ctx, id)
	if err != nil {
		p.logger.Warn("participant email lookup failed, keeping stored email", "user_id", id, "err", err)
		return "", false
	}
	return strings.TrimSpace(email), true
}
