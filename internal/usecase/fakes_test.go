package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"order-relay/internal/directory"
	"order-relay/internal/domain"
	"order-relay/internal/objectstore"
	"order-relay/internal/session"
)

type fakeOrders struct {
	orders    []domain.Order
	err       error
	queries   []domain.OrderQuery
	latestFor string
	latestN   int
}

func (f *fakeOrders) AllOrders(_ context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	f.queries = append(f.queries, q)
	return f.orders, f.err
}

func (f *fakeOrders) LatestByEmail(_ context.Context, staffEmail string, count int) ([]domain.Order, error) {
	f.latestFor = staffEmail
	f.latestN = count
	return f.orders, f.err
}

type fakeResolver struct {
	email string
	err   error
	calls []string
}

func (f *fakeResolver) ResolveEmail(_ context.Context, id string) (string, error) {
	f.calls = append(f.calls, id)
	return f.email, f.err
}

type fakeCounter struct {
	payloads []any
	err      error
}

func (f *fakeCounter) CheckAmount(_ context.Context, payload any) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type sent struct {
	ref   domain.ConversationReference
	reply domain.Reply
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	failOn map[string]error
}

func (f *fakeSender) Send(_ context.Context, ref domain.ConversationReference, reply domain.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ref: ref, reply: reply})
	if err, ok := f.failOn[ref.Conversation.ID]; ok {
		return err
	}
	return nil
}

func (f *fakeSender) conversations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.ref.Conversation.ID)
	}
	return out
}

// conflictingObjects rejects every conditional write.
type conflictingObjects struct {
	objectstore.Store
}

func (c *conflictingObjects) Put(_ context.Context, key string, _ []byte, _ objectstore.PutOptions) (string, error) {
	return "", &objectstore.ConflictError{Key: key}
}

// unreadableObjects fails reads but accepts writes.
type unreadableObjects struct {
	objectstore.Store
}

func (u *unreadableObjects) Get(context.Context, string) (objectstore.Object, error) {
	return objectstore.Object{}, errors.New("read timeout")
}

func newSessions(t *testing.T, objects objectstore.Store) *session.Store {
	t.Helper()
	s, err := session.NewStore(objects, "session/")
	require.NoError(t, err)
	return s
}

func newDirectory(t *testing.T, objects objectstore.Store) *directory.Store {
	t.Helper()
	d, err := directory.NewStore(objects, directory.DefaultKey, nil)
	require.NoError(t, err)
	return d
}

func message(text string) domain.Activity {
	return domain.Activity{
		Type:         domain.ActivityTypeMessage,
		ID:           "act-1",
		Text:         text,
		From:         domain.ChannelAccount{ID: "29:amy", Name: "Amy", AADObjectID: "aad-amy"},
		Recipient:    domain.ChannelAccount{ID: "28:bot", Name: "Relay"},
		Conversation: domain.ConversationAccount{ID: "conv-1", TenantID: "tenant-1"},
		ChannelID:    "msteams",
		ServiceURL:   "https://smba.example.com/",
	}
}
