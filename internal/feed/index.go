package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"emergency-dispatch/internal/models"
)

// IndexVersion is the schema version of the identity index file.
// An index with any other version is ignored.
const IndexVersion = 1

// ErrIndexVersion is returned for an identity index of another schema version.
var ErrIndexVersion = errors.New("unsupported identity index version")

// Index is the on-disk form of the identities published by one build.
type Index struct {
	Version     int          `json:"version"`
	GeneratedAt time.Time    `json:"generated_at"`
	RunID       string       `json:"run_id,omitempty"`
	Entries     []IndexEntry `json:"identities"`
}

// IndexEntry ties one essence to its published identity.
type IndexEntry struct {
	Address    string    `json:"address"`
	Type       string    `json:"type"`
	GUID       string    `json:"guid"`
	Code       string    `json:"jurisdiction_code"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewIndex builds the index of a synthesized feed, in feed order.
// Only the first event of each essence is recorded.
func NewIndex(events []models.Event, now time.Time, runID string) Index {
	idx := Index{Version: IndexVersion, GeneratedAt: now, RunID: runID, Entries: []IndexEntry{}}
	seen := make(map[models.Essence]bool, len(events))
	for _, e := range events {
		if seen[e.Essence()] {
			continue
		}
		seen[e.Essence()] = true
		idx.Entries = append(idx.Entries, IndexEntry{
			Address:    e.Address,
			Type:       e.Type,
			GUID:       e.GUID,
			Code:       e.Code,
			OccurredAt: e.OccurredAt,
		})
	}
	return idx
}

// Marshal encodes the index as indented JSON.
func (idx Index) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal identity index: %w", err)
	}
	return append(data, '\n'), nil
}

// Identities returns the essence-to-identity map held by the index.
func (idx Index) Identities() Identities {
	ids := make(Identities, len(idx.Entries))
	for _, e := range idx.Entries {
		if e.GUID == "" {
			continue
		}
		key := models.Essence{Address: e.Address, Type: e.Type}
		if _, ok := ids[key]; !ok {
			ids[key] = e.GUID
		}
	}
	return ids
}

// LoadIndex reads an identity index file.
func LoadIndex(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Index{}, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, fmt.Errorf("parse identity index %s: %w", path, err)
	}
	if idx.Version != IndexVersion {
		return Index{}, fmt.Errorf("%w: %d", ErrIndexVersion, idx.Version)
	}
	return idx, nil
}

// Recover returns the identities published by the previous build. It reads
// the identity index first and falls back to the previous feed document.
// Recovery never fails: when neither source is usable every event of this
// build is treated as new.
func Recover(indexPath, feedPath string, logger *slog.Logger) Identities {
	idx, err := LoadIndex(indexPath)
	if err == nil {
		ids := idx.Identities()
		logger.Debug("Recovered identities from index", "file", indexPath, "count", len(ids))
		return ids
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Ignoring unusable identity index", "file", indexPath, "error", err)
	}

	f, err := os.Open(feedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("No previous feed found, all events are new.", "file", feedPath)
		} else {
			logger.Warn("Could not open previous feed", "file", feedPath, "error", err)
		}
		return Identities{}
	}
	defer f.Close()

	ids, err := ParseIdentities(f)
	if err != nil {
		logger.Warn("Ignoring unreadable previous feed", "file", feedPath, "error", err)
		return Identities{}
	}
	logger.Info("Recovered identities from previous feed", "file", feedPath, "count", len(ids))
	return ids
}
