// Package sources holds the per-agency adapters. Each adapter knows one
// agency page layout and turns it into a normalised models.Record.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/models"
)

// Adapter collects the currently active dispatches of one jurisdiction.
// Entries that cannot be parsed are omitted; an error is returned only
// when the page itself cannot be fetched or has an unexpected shape.
type Adapter interface {
	Code() string
	Name() string
	Collect(ctx context.Context, cache *fetch.Cache) (models.Record, error)
}

// Registry returns every known adapter ordered by jurisdiction code.
func Registry() []Adapter {
	adapters := []Adapter{
		hakodate(),
		kitahiroshima(),
		komatsu(),
		kasugai(),
		osakaMinami("272213", "柏原市"),
		osakaMinami("272221", "羽曳野市"),
		osakaMinami("273643", "河南町"),
	}
	sort.SliceStable(adapters, func(i, j int) bool { return adapters[i].Code() < adapters[j].Code() })
	return adapters
}

// Lookup returns the adapters whose codes are listed, in registry order.
// An empty list selects every adapter.
func Lookup(codes []string) ([]Adapter, error) {
	all := Registry()
	if len(codes) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[strings.TrimSpace(c)] = true
	}
	var out []Adapter
	for _, a := range all {
		if want[a.Code()] {
			out = append(out, a)
			delete(want, a.Code())
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for c := range want {
			missing = append(missing, c)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown jurisdiction code(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// page is the fetch target shared by the adapters below.
type page struct {
	code     string
	name     string
	url      string
	encoding fetch.Encoding
}

func (p page) Code() string { return p.code }
func (p page) Name() string { return p.name }

func (p page) record() models.Record {
	return models.NewRecord(p.code, p.name, p.url)
}

func (p page) document(ctx context.Context, cache *fetch.Cache) (*goquery.Document, error) {
	body, err := cache.Get(ctx, fetch.Request{URL: p.url, Encoding: p.encoding})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.url, err)
	}
	return doc, nil
}

// add appends an entry when all of its fields are present.
func add(rec *models.Record, typ, address, tm string) {
	typ = strings.TrimSpace(typ)
	address = strings.TrimSpace(address)
	tm = strings.TrimSpace(tm)
	if typ == "" || address == "" || tm == "" {
		return
	}
	rec.Disasters = append(rec.Disasters, models.Disaster{Type: typ, Address: address, Time: tm})
}
