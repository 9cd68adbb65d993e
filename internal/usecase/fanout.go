package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"order-relay/internal/domain"
)

// Sender delivers one reply into a conversation.
type Sender interface {
	Send(ctx context.Context, ref domain.ConversationReference, reply domain.Reply) error
}

// RecordLister returns every known participant.
type RecordLister interface {
	Load(ctx context.Context) ([]domain.Record, error)
}

// Report summarizes one fan-out run. Skipped counts records without a
// complete conversation reference.
type Report struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Broadcaster pushes one message to every participant in the directory.
type Broadcaster struct {
	records RecordLister
	sender  Sender
	workers int
	logger  *slog.Logger
}

// NewBroadcaster builds a fan-out over records. workers below 1 means one,
// which sends in directory order.
func NewBroadcaster(records RecordLister, sender Sender, workers int, logger *slog.Logger) (*Broadcaster, error) {
	if records == nil {
		return nil, errors.New("usecase: record lister must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{records: records, sender: sender, workers: workers, logger: logger}, nil
}

// Broadcast sends reply to each record. A failed send is logged and
// counted; it does not stop the rest.
func (b *Broadcaster) Broadcast(ctx context.Context, reply domain.Reply) (Report, error) {
	records, err := b.records.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("usecase: load directory: %w", err)
	}

	var report Report
	refs := make([]domain.ConversationReference, 0, len(records))
	for _, r := range records {
		ref, ok := r.Reference()
		if !ok {
			report.Skipped++
			b.logger.Warn("fan-out skipped incomplete reference", "key", r.Key())
			continue
		}
		refs = append(refs, ref)
	}
	report.Attempted = len(refs)

	jobs := make(chan domain.ConversationReference)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				err := b.sender.Send(ctx, ref, reply)
				mu.Lock()
				if err != nil {
					report.Failed++
				} else {
					report.Sent++
				}
				mu.Unlock()
				if err != nil {
					b.logger.Error("fan-out send failed",
						"conversation_id", ref.Conversation.ID,
						"user_id", ref.User.ID,
						"err", err,
					)
				}
			}
		}()
	}
	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()

	b.logger.Info("fan-out complete",
		"attempted", report.Attempted,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}
