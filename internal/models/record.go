package models

import (
	"encoding/json"
	"fmt"
)

// Source describes where a record was collected from.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Disaster is a raw dispatch entry as reported by an agency page.
// Time is a local time of day in "HH:MM" form with no date attached.
type Disaster struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Time    string `json:"time"`
}

// Record is the per-authority snapshot produced by one adapter in one run.
type Record struct {
	Code      string     `json:"jurisdiction_code"`
	Sources   []Source   `json:"source"`
	Disasters []Disaster `json:"disasters"`
}

// Source returns the record's single source descriptor.
func (r Record) Source() Source {
	if len(r.Sources) == 0 {
		return Source{}
	}
	return r.Sources[0]
}

// UnmarshalJSON accepts the legacy "jisx0402" key in place of "jurisdiction_code".
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code      string     `json:"jurisdiction_code"`
		Legacy    string     `json:"jisx0402"`
		Sources   []Source   `json:"source"`
		Disasters []Disaster `json:"disasters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	code := raw.Code
	if code == "" {
		code = raw.Legacy
	}
	if code == "" {
		return fmt.Errorf("record has no jurisdiction code")
	}
	*r = Record{Code: code, Sources: raw.Sources, Disasters: raw.Disasters}
	if r.Disasters == nil {
		r.Disasters = []Disaster{}
	}
	return nil
}

// NewRecord builds a record with a single source and an empty, non-nil event list,
// so that it always serialises "disasters" as an array.
func NewRecord(code, name, url string) Record {
	return Record{
		Code:      code,
		Sources:   []Source{{Name: name, URL: url}},
		Disasters: []Disaster{},
	}
}
