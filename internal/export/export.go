// Package export builds the convenience artifacts derived from persisted
// records: the union snapshot, the jurisdiction list and an iCalendar view
// of the feed.
package export

import (
	"encoding/json"
	"fmt"
	"sort"

	"emergency-dispatch/internal/models"
)

// UnionEntry is the value stored under one jurisdiction code in the union
// snapshot.
type UnionEntry struct {
	Sources   []models.Source   `json:"source"`
	Disasters []models.Disaster `json:"disasters"`
}

// Union merges every record that reports at least one event into a single
// snapshot keyed by jurisdiction code. Records without events are omitted.
func Union(records []models.Record) map[string]UnionEntry {
	out := make(map[string]UnionEntry, len(records))
	for _, rec := range records {
		if len(rec.Disasters) == 0 {
			continue
		}
		out[rec.Code] = UnionEntry{Sources: rec.Sources, Disasters: rec.Disasters}
	}
	return out
}

// Codes returns the sorted, deduplicated jurisdiction codes of records.
func Codes(records []models.Record) []string {
	seen := make(map[string]bool, len(records))
	codes := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Code == "" || seen[rec.Code] {
			continue
		}
		seen[rec.Code] = true
		codes = append(codes, rec.Code)
	}
	sort.Strings(codes)
	return codes
}

// MarshalUnion encodes the union snapshot. Keys come out sorted.
func MarshalUnion(union map[string]UnionEntry) ([]byte, error) {
	data, err := json.MarshalIndent(union, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal union snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// MarshalCodes encodes the jurisdiction list.
func MarshalCodes(codes []string) ([]byte, error) {
	if codes == nil {
		codes = []string{}
	}
	data, err := json.MarshalIndent(codes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal jurisdiction list: %w", err)
	}
	return append(data, '\n'), nil
}
