package directory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"order-relay/internal/domain"
)

func rec(userID, tenantID, summary string) domain.Record {
	return domain.Record{
		From:         domain.ChannelAccount{ID: userID, Name: "User " + userID},
		Conversation: domain.ConversationAccount{ID: "conv-" + userID, TenantID: tenantID},
		ServiceURL:   "https://smba.example.net/apac/",
		Recipient:    domain.ChannelAccount{ID: "bot-1"},
		Summary:      summary,
	}
}

func TestMerge_InsertsNewKey(t *testing.T) {
	out := Merge([]domain.Record{rec("u1", "t1", "a")}, rec("u2", "t1", "b"), ByParticipant)
	require.Len(t, out, 2)
	require.Equal(t, "u1", out[0].From.ID)
	require.Equal(t, "u2", out[1].From.ID)
}

func TestMerge_OverwritesInPlace(t *testing.T) {
	existing := []domain.Record{rec("u1", "t1", "old"), rec("u2", "t1", "keep")}
	out := Merge(existing, rec("u1", "t1", "new"), ByParticipant)
	require.Len(t, out, 2)
	require.Equal(t, "new", out[0].Summary)
	require.Equal(t, "keep", out[1].Summary)
	require.Equal(t, "old", existing[0].Summary, "input slice is not modified")
}

func TestMerge_SameUserDifferentTenantIsDistinct(t *testing.T) {
	out := Merge([]domain.Record{rec("u1", "t1", "a")}, rec("u1", "t2", "b"), ByParticipant)
	require.Len(t, out, 2)
}

func TestMerge_CollapsesStoredDuplicatesLastWins(t *testing.T) {
	existing := []domain.Record{rec("u1", "t1", "first"), rec("u2", "t1", "x"), rec("u1", "t1", "second")}
	out := Merge(existing, rec("u3", "t1", "y"), ByParticipant)
	require.Len(t, out, 3)
	require.Equal(t, "second", out[0].Summary)
}

func TestMerge_RepeatedUpsertsLeaveOneRecordPerKey(t *testing.T) {
	var docs []domain.Record
	for i := 0; i < 25; i++ {
		docs = Merge(docs, rec(fmt.Sprintf("u%d", i%3), "t1", fmt.Sprintf("obs-%d", i)), ByParticipant)
	}
	require.Len(t, docs, 3)
	require.Equal(t, "obs-24", docs[0].Summary)
	require.Equal(t, "obs-22", docs[1].Summary)
	require.Equal(t, "obs-23", docs[2].Summary)
}

func TestMerge_CustomKey(t *testing.T) {
	byConversation := func(r domain.Record) string { return r.Conversation.ID }
	a := rec("u1", "t1", "a")
	b := rec("u2", "t1", "b")
	b.Conversation.ID = a.Conversation.ID
	out := Merge([]domain.Record{a}, b, byConversation)
	require.Len(t, out, 1)
	require.Equal(t, "u2", out[0].From.ID)
}
