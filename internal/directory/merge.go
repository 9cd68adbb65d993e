// Package directory maintains the participant directory: one JSON array
// document holding a single record per participant identity.
package directory

import "order-relay/internal/domain"

// KeyFunc returns the identity key of a record.
type KeyFunc func(domain.Record) string

// ByParticipant keys records by user id and tenant.
func ByParticipant(r domain.Record) string {
	return r.Key()
}

// Merge collapses existing to one record per key, later duplicates winning,
// then sets incoming under its key. A key keeps the position of its first
// occurrence, so repeated merges produce a stable order.
func Merge(existing []domain.Record, incoming domain.Record, key KeyFunc) []domain.Record {
	merged := Dedupe(existing, key)
	k := key(incoming)
	for i := range merged {
		if key(merged[i]) == k {
			merged[i] = incoming
			return merged
		}
	}
	return append(merged, incoming)
}

// Dedupe keeps the last record seen for every key.
func Dedupe(records []domain.Record, key KeyFunc) []domain.Record {
	index := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
