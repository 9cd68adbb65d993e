package directory

import (
	"bytes"
	"encoding/json"

	"order-relay/internal/domain"
)

// ParseDocument decodes a directory document. A well-formed array is used
// as is. Anything else is treated as a run of concatenated JSON objects:
// each brace-balanced object is decoded on its own and the ones that fail
// are dropped. The second return value counts the dropped candidates.
func ParseDocument(raw []byte) ([]domain.Record, int) {
	var records []domain.Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, 0
	}

	records = records[:0]
	dropped := 0
	for _, candidate := range splitObjects(raw) {
		var r domain.Record
		if err := json.Unmarshal(candidate, &r); err != nil {
			dropped++
			continue
		}
		records = append(records, r)
	}
	return records, dropped
}

// NormalizeDocument repairs raw into a deduplicated array document.
// Running it on its own output returns the same bytes.
func NormalizeDocument(raw []byte, key KeyFunc) ([]byte, []domain.Record, int, error) {
	records, dropped := ParseDocument(raw)
	records = Dedupe(records, key)
	body, err := encode(records)
	if err != nil {
		return nil, nil, dropped, err
	}
	return body, records, dropped, nil
}

func encode(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// splitObjects returns every top-level {...} span in raw, tracking string
// literals so braces inside values do not unbalance the scan.
func splitObjects(raw []byte) [][]byte {
	var (
		out      [][]byte
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i, c := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, bytes.TrimSpace(raw[start:i+1]))
				start = -1
			}
		}
	}
	return out
}
