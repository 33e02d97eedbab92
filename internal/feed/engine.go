// Package feed turns persisted per-authority records into one
// chronologically ordered feed whose item identities survive across runs.
package feed

import (
	"fmt"
	"sort"
	"time"

	"emergency-dispatch/internal/models"
)

// Identities maps an event essence to the identity token it was published with.
type Identities map[models.Essence]string

// Stats describes one synthesis.
type Stats struct {
	Dropped   int // entries whose time of day could not be parsed
	Recovered int // identities reused from the previous run
	Suffixed  int // identities that received a collision suffix
}

// Title renders the item title for a dispatch type reported by an agency.
func Title(typ, sourceName string) string {
	return typ + "（" + sourceName + "）"
}

// BaseIdentity is the identity of an event seen for the first time.
func BaseIdentity(at time.Time, code string) string {
	return at.Format("200601021504") + "-" + code
}

// Synthesize resolves every raw entry of records against now, assigns
// identities using prior, and returns the events in chronological order.
// Ties are broken by jurisdiction code, then by position within the record,
// so the result does not depend on the order records are passed in.
func Synthesize(records []models.Record, prior Identities, now time.Time) ([]models.Event, Stats) {
	var stats Stats
	var events []models.Event
	for _, rec := range records {
		src := rec.Source()
		for i, d := range rec.Disasters {
			at, err := ResolveTime(now, d.Time)
			if err != nil {
				stats.Dropped++
				continue
			}
			events = append(events, models.Event{
				Title:       Title(d.Type, src.Name),
				Description: d.Address,
				Link:        src.URL,
				OccurredAt:  at,
				Code:        rec.Code,
				Type:        d.Type,
				Address:     d.Address,
				Index:       i,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Index < b.Index
	})

	stats.Recovered, stats.Suffixed = assign(events, prior)
	return events, stats
}

// assign sets GUID on every event, which must already be in feed order.
// Recovered tokens are claimed first by their earliest holder; any other
// event whose token is already taken gets the next free "-NN" suffix.
func assign(events []models.Event, prior Identities) (recovered, suffixed int) {
	fromPrior := make([]bool, len(events))
	for i := range events {
		if tok, ok := prior[events[i].Essence()]; ok && tok != "" {
			events[i].GUID = tok
			fromPrior[i] = true
			recovered++
			continue
		}
		events[i].GUID = BaseIdentity(events[i].OccurredAt, events[i].Code)
	}

	used := make(map[string]bool, len(events))
	holder := make(map[string]int)
	for i := range events {
		if !fromPrior[i] {
			continue
		}
		if _, ok := holder[events[i].GUID]; !ok {
			holder[events[i].GUID] = i
			used[events[i].GUID] = true
		}
	}

	for i := range events {
		tok := events[i].GUID
		if fromPrior[i] && holder[tok] == i {
			continue
		}
		if !used[tok] {
			used[tok] = true
			continue
		}
		for n := 1; ; n++ {
			cand := fmt.Sprintf("%s-%02d", tok, n)
			if !used[cand] {
				used[cand] = true
				events[i].GUID = cand
				suffixed++
				break
			}
		}
	}
	return recovered, suffixed
}

// IdentitiesOf returns the essence-to-identity map of a synthesized feed.
// When several events share an essence the earliest one wins.
func IdentitiesOf(events []models.Event) Identities {
	ids := make(Identities, len(events))
	for _, e := range events {
		if _, ok := ids[e.Essence()]; !ok {
			ids[e.Essence()] = e.GUID
		}
	}
	return ids
}
