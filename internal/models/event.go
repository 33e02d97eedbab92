package models

import "time"

// Event is a dispatch event after its calendar date and identity have been resolved.
// This is the unit published in the feed, independent of any output format.
type Event struct {
	GUID        string    // Identity token, stable across runs while the incident is reported
	Title       string    // "{type}（{source name}）"
	Description string    // The address, verbatim
	Link        string    // Canonical URL of the reporting authority
	OccurredAt  time.Time // Resolved local date-time of the dispatch
	Code        string    // Jurisdiction code of the reporting authority
	Type        string    // Raw dispatch type, part of the essence key
	Address     string    // Raw address, part of the essence key
	Index       int       // Position of the raw entry within its record
}

// Essence is the cross-run correlation key of an event. Time is not part of
// it: agencies keep reporting the same incident with the same address
// and type while the reported time may drift.
type Essence struct {
	Address string
	Type    string
}

// Essence returns the correlation key of the event.
func (e Event) Essence() Essence {
	return Essence{Address: e.Address, Type: e.Type}
}
