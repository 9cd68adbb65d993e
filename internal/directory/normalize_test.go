package directory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const concatenated = `{"from":{"id":"u1"},"conversation":{"id":"c1","tenantId":"t1"},"summary":"first"}
{"from":{"id":"u2"},"conversation":{"id":"c2","tenantId":"t1"},"summary":"has } brace"}
{"from":{"id":"u1"},"conversation":{"id":"c1","tenantId":"t1"},"summary":"second"}
{"from":{"id":3},"broken":true}
`

func TestParseDocument_Array(t *testing.T) {
	records, dropped := ParseDocument([]byte(`[{"from":{"id":"u1"},"conversation":{"id":"c1","tenantId":"t1"}}]`))
	require.Equal(t, 0, dropped)
	require.Len(t, records, 1)
}

func TestParseDocument_ConcatenatedObjects(t *testing.T) {
	records, dropped := ParseDocument([]byte(concatenated))
	require.Equal(t, 1, dropped)
	require.Len(t, records, 3)
	require.Equal(t, "has } brace", records[1].Summary)
}

func TestParseDocument_Garbage(t *testing.T) {
	records, dropped := ParseDocument([]byte(`not json at all`))
	require.Empty(t, records)
	require.Equal(t, 0, dropped)
}

func TestParseDocument_EscapedQuoteInString(t *testing.T) {
	raw := `{"from":{"id":"u1"},"summary":"say \"{hi\""}{"from":{"id":"u2"}}`
	records, dropped := ParseDocument([]byte(raw))
	require.Equal(t, 0, dropped)
	require.Len(t, records, 2)
	require.Equal(t, `say "{hi"`, records[0].Summary)
}

func TestNormalizeDocument_DedupesAndProducesArray(t *testing.T) {
	body, records, dropped, err := NormalizeDocument([]byte(concatenated), ByParticipant)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Len(t, records, 2)
	require.Equal(t, "second", records[0].Summary)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded, 2)
}

func TestNormalizeDocument_Idempotent(t *testing.T) {
	inputs := []string{
		concatenated,
		`[]`,
		``,
		`[{"from":{"id":"u1"},"conversation":{"tenantId":"t1"}},{"from":{"id":"u1"},"conversation":{"tenantId":"t1"},"summary":"dup"}]`,
	}
	for _, in := range inputs {
		once, _, _, err := NormalizeDocument([]byte(in), ByParticipant)
		require.NoError(t, err)
		twice, _, dropped, err := NormalizeDocument(once, ByParticipant)
		require.NoError(t, err)
		require.Equal(t, 0, dropped)
		require.Equal(t, string(once), string(twice), "input %q", in)
	}
}

func TestNormalizeDocument_EmptyInputIsEmptyArray(t *testing.T) {
	body, records, _, err := NormalizeDocument(nil, ByParticipant)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, "[]", string(body))
}
