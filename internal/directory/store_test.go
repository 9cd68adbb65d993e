package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"order-relay/internal/domain"
	"order-relay/internal/objectstore"
)

// flakyObjects wraps Memory and injects errors.
type flakyObjects struct {
	*objectstore.Memory
	getErr       error
	putConflicts int
	puts         int
}

func (f *flakyObjects) Get(ctx context.Context, key string) (objectstore.Object, error) {
	if f.getErr != nil {
		return objectstore.Object{}, f.getErr
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyObjects) Put(ctx context.Context, key string, body []byte, opts objectstore.PutOptions) (string, error) {
	f.puts++
	if f.puts <= f.putConflicts {
		return "", &objectstore.ConflictError{Key: key}
	}
	return f.Memory.Put(ctx, key, body, opts)
}

func mustNewStore(t *testing.T, objects objectstore.Store) *Store {
	t.Helper()
	s, err := NewStore(objects, "", nil)
	require.NoError(t, err)
	return s
}

func readDoc(t *testing.T, objects objectstore.Store) []map[string]any {
	t.Helper()
	obj, err := objects.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(obj.Body, &out))
	return out
}

func TestNewStore_NilObjects(t *testing.T) {
	_, err := NewStore(nil, "", nil)
	require.Error(t, err)
}

func TestUpsert_CreatesDocument(t *testing.T) {
	mem := objectstore.NewMemory()
	s := mustNewStore(t, mem)
	require.NoError(t, s.Upsert(context.Background(), rec("u1", "t1", "hello")))

	records, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "hello", records[0].Summary)
}

func TestUpsert_SameIdentityConvergesToLastRecord(t *testing.T) {
	mem := objectstore.NewMemory()
	s := mustNewStore(t, mem)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(context.Background(), rec("u1", "t1", fmt.Sprintf("obs-%d", i))))
	}
	require.NoError(t, s.Upsert(context.Background(), rec("u2", "t1", "other")))

	records, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "obs-4", records[0].Summary)
}

func TestUpsertWith_KeepEmail(t *testing.T) {
	s := mustNewStore(t, objectstore.NewMemory())
	first := rec("u1", "t1", "first")
	first.Email = "amy@example.com"
	require.NoError(t, s.Upsert(context.Background(), first))

	require.NoError(t, s.UpsertWith(context.Background(), rec("u1", "t1", "second"), KeepEmail))
	require.NoError(t, s.UpsertWith(context.Background(), rec("u2", "t1", "new"), KeepEmail))

	records, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "second", records[0].Summary)
	require.Equal(t, "amy@example.com", records[0].Email)
	require.Empty(t, records[1].Email)
}

func TestUpsert_NeverPersistsFreeText(t *testing.T) {
	mem := objectstore.NewMemory()
	s := mustNewStore(t, mem)

	var incoming domain.Record
	require.NoError(t, json.Unmarshal([]byte(`{
		"from":{"id":"u1"},"conversation":{"id":"c1","tenantId":"t1"},
		"msg":"secret text","message":"more secret text"}`), &incoming))
	require.NoError(t, s.Upsert(context.Background(), incoming))

	doc := readDoc(t, mem)
	require.Len(t, doc, 1)
	require.NotContains(t, doc[0], "msg")
	require.NotContains(t, doc[0], "message")
}

func TestUpsert_MalformedDocumentTreatedAsEmpty(t *testing.T) {
	mem := objectstore.NewMemory()
	_, err := mem.Put(context.Background(), DefaultKey, []byte(`{"from":{"id":"u9"}}{"from":{"id":"u8"}}`), objectstore.PutOptions{})
	require.NoError(t, err)

	s := mustNewStore(t, mem)
	require.NoError(t, s.Upsert(context.Background(), rec("u1", "t1", "x")))
	require.Len(t, readDoc(t, mem), 1)
}

func TestUpsert_ReadFailureTreatedAsEmpty(t *testing.T) {
	objects := &flakyObjects{Memory: objectstore.NewMemory(), getErr: errors.New("throttled")}
	s := mustNewStore(t, objects)
	require.NoError(t, s.Upsert(context.Background(), rec("u1", "t1", "x")))
	objects.getErr = nil
	require.Len(t, readDoc(t, objects), 1)
}

func TestUpsert_RetriesConflicts(t *testing.T) {
	objects := &flakyObjects{Memory: objectstore.NewMemory(), putConflicts: 2}
	s := mustNewStore(t, objects)
	require.NoError(t, s.Upsert(context.Background(), rec("u1", "t1", "x")))
	require.Equal(t, 3, objects.puts)
}

func TestUpsert_GivesUpAfterRepeatedConflicts(t *testing.T) {
	objects := &flakyObjects{Memory: objectstore.NewMemory(), putConflicts: 10}
	s := mustNewStore(t, objects)
	err := s.Upsert(context.Background(), rec("u1", "t1", "x"))
	require.ErrorIs(t, err, objectstore.ErrConflict)
	require.Equal(t, maxUpsertAttempts, objects.puts)
}

func TestUpsert_RequiresUserID(t *testing.T) {
	s := mustNewStore(t, objectstore.NewMemory())
	require.Error(t, s.Upsert(context.Background(), domain.Record{}))
}

func TestLoad_MissingDocument(t *testing.T) {
	s := mustNewStore(t, objectstore.NewMemory())
	records, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestNormalize_RepairsAndIsIdempotent(t *testing.T) {
	mem := objectstore.NewMemory()
	_, err := mem.Put(context.Background(), DefaultKey, []byte(concatenated), objectstore.PutOptions{})
	require.NoError(t, err)
	s := mustNewStore(t, mem)

	res, err := s.Normalize(context.Background())
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, 2, res.Records)
	require.Equal(t, 1, res.Dropped)

	first, err := mem.Get(context.Background(), DefaultKey)
	require.NoError(t, err)

	res, err = s.Normalize(context.Background())
	require.NoError(t, err)
	require.False(t, res.Changed)

	second, err := mem.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	require.Equal(t, string(first.Body), string(second.Body))
	require.Equal(t, first.ETag, second.ETag, "an unchanged document is not rewritten")
}

func TestNormalize_MissingDocument(t *testing.T) {
	s := mustNewStore(t, objectstore.NewMemory())
	_, err := s.Normalize(context.Background())
	require.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestFindByEmail(t *testing.T) {
	mem := objectstore.NewMemory()
	s := mustNewStore(t, mem)
	r := rec("u1", "t1", "")
	r.Email = "Amy.Chen@Example.com"
	require.NoError(t, s.Upsert(context.Background(), r))
	require.NoError(t, s.Upsert(context.Background(), rec("u2", "t1", "")))

	got, ok, err := s.FindByEmail(context.Background(), strings.ToLower(r.Email))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", got.From.ID)

	_, ok, err = s.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.FindByEmail(context.Background(), " ")
	require.NoError(t, err)
	require.False(t, ok)
}
