package feed

import (
	"testing"
	"time"

	"emergency-dispatch/internal/models"
)

func record(code, name string, entries ...models.Disaster) models.Record {
	rec := models.NewRecord(code, name, "https://"+code+".example.jp/")
	rec.Disasters = append(rec.Disasters, entries...)
	return rec
}

func entry(typ, address, clock string) models.Disaster {
	return models.Disaster{Type: typ, Address: address, Time: clock}
}

func guids(events []models.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.GUID
	}
	return out
}

func TestSynthesizeOrdersChronologically(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 10, 0, 0, jst)
	records := []models.Record{
		record("232068", "春日井市消防本部", entry("救急", "愛知県春日井市A", "00:05"), entry("火災", "愛知県春日井市B", "23:40")),
		record("012025", "函館市消防本部", entry("建物火災", "北海道函館市C", "23:55")),
	}

	events, _ := Synthesize(records, nil, now)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].OccurredAt.Before(events[i-1].OccurredAt) {
			t.Errorf("events not chronological at %d: %s before %s", i, events[i].OccurredAt, events[i-1].OccurredAt)
		}
	}
	if events[0].Address != "愛知県春日井市B" || events[2].Address != "愛知県春日井市A" {
		t.Errorf("order = %s, %s, %s", events[0].Address, events[1].Address, events[2].Address)
	}
	if events[1].Title != "建物火災（函館市消防本部）" {
		t.Errorf("Title = %q", events[1].Title)
	}
	if events[1].Link != "https://012025.example.jp/" || events[1].Description != "北海道函館市C" {
		t.Errorf("event = %+v", events[1])
	}
}

func TestSynthesizeDropsUnparseableTimes(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	records := []models.Record{
		record("172031", "小松市消防本部", entry("火災", "X", "不明"), entry("救助", "Y", "11:00")),
	}
	events, stats := Synthesize(records, nil, now)
	if len(events) != 1 || stats.Dropped != 1 {
		t.Fatalf("events = %d, dropped = %d; want 1 and 1", len(events), stats.Dropped)
	}
	if events[0].Index != 1 {
		t.Errorf("Index = %d, want position within record", events[0].Index)
	}
}

func TestNewEventIdentity(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 10, 0, 0, jst)
	events, _ := Synthesize([]models.Record{record("012025", "函館市消防本部", entry("火災", "X", "23:55"))}, nil, now)
	if got, want := events[0].GUID, "202501142355-012025"; got != want {
		t.Errorf("GUID = %q, want %q", got, want)
	}
}

func TestCollisionSuffixing(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	records := []models.Record{
		record("272213", "大阪南消防組合",
			entry("救急", "大阪府柏原市A", "10:00"),
			entry("火災", "大阪府柏原市B", "10:00"),
			entry("救助", "大阪府柏原市C", "10:00"),
		),
	}
	events, stats := Synthesize(records, nil, now)
	want := []string{"202501151000-272213", "202501151000-272213-01", "202501151000-272213-02"}
	for i, g := range guids(events) {
		if g != want[i] {
			t.Errorf("GUID[%d] = %q, want %q", i, g, want[i])
		}
	}
	if events[0].Address != "大阪府柏原市A" {
		t.Errorf("first event = %s, want enumeration order on ties", events[0].Address)
	}
	if stats.Suffixed != 2 {
		t.Errorf("Suffixed = %d, want 2", stats.Suffixed)
	}
}

func TestTieBreakIndependentOfRecordOrder(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	a := record("012025", "函館市消防本部", entry("火災", "A", "10:00"))
	b := record("012343", "北広島市消防本部", entry("火災", "B", "10:00"))

	first, _ := Synthesize([]models.Record{a, b}, nil, now)
	second, _ := Synthesize([]models.Record{b, a}, nil, now)
	for i := range first {
		if first[i].Address != second[i].Address || first[i].GUID != second[i].GUID {
			t.Errorf("position %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].Code != "012025" {
		t.Errorf("tie broken by %s, want lowest jurisdiction code first", first[0].Code)
	}
}

func TestIdentityStableAcrossRuns(t *testing.T) {
	run1 := time.Date(2025, 1, 15, 10, 2, 0, 0, jst)
	events1, _ := Synthesize([]models.Record{record("012025", "函館市消防本部", entry("火災", "X", "10:00"))}, nil, run1)

	run2 := run1.Add(5 * time.Minute)
	events2, stats := Synthesize([]models.Record{record("012025", "函館市消防本部", entry("火災", "X", "10:05"))}, IdentitiesOf(events1), run2)

	if events2[0].GUID != events1[0].GUID {
		t.Errorf("GUID changed across runs: %q -> %q", events1[0].GUID, events2[0].GUID)
	}
	if stats.Recovered != 1 {
		t.Errorf("Recovered = %d, want 1", stats.Recovered)
	}
	if !events2[0].OccurredAt.Equal(time.Date(2025, 1, 15, 10, 5, 0, 0, jst)) {
		t.Errorf("OccurredAt = %s, want the newly reported time", events2[0].OccurredAt)
	}
}

func TestRecoveredIdentityKeepsItsToken(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	prior := Identities{{Address: "B", Type: "火災"}: "202501151000-272213"}
	records := []models.Record{
		record("272213", "大阪南消防組合", entry("救急", "A", "10:00"), entry("火災", "B", "10:00")),
	}
	events, _ := Synthesize(records, prior, now)
	if events[1].GUID != "202501151000-272213" {
		t.Errorf("ongoing incident GUID = %q, want its published token", events[1].GUID)
	}
	if events[0].GUID != "202501151000-272213-01" {
		t.Errorf("new incident GUID = %q, want suffixed token", events[0].GUID)
	}
}

func TestSameEssenceTwiceInOneRun(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	prior := Identities{{Address: "X", Type: "火災"}: "202501150900-012025"}
	records := []models.Record{
		record("012025", "函館市消防本部", entry("火災", "X", "09:00"), entry("火災", "X", "09:30")),
	}
	events, _ := Synthesize(records, prior, now)
	if events[0].GUID != "202501150900-012025" || events[1].GUID != "202501150900-012025-01" {
		t.Errorf("GUIDs = %v", guids(events))
	}
}

func TestSuffixSkipsTokensInUse(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	prior := Identities{{Address: "P", Type: "救急"}: "202501151000-012025-01"}
	records := []models.Record{
		record("012025", "函館市消防本部",
			entry("火災", "A", "10:00"),
			entry("火災", "B", "10:00"),
			entry("救急", "P", "11:00"),
		),
	}
	events, _ := Synthesize(records, prior, now)
	want := []string{"202501151000-012025", "202501151000-012025-02", "202501151000-012025-01"}
	for i, g := range guids(events) {
		if g != want[i] {
			t.Errorf("GUID[%d] = %q, want %q", i, g, want[i])
		}
	}
}

func TestIdentitiesUniqueWithinRun(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, jst)
	var entries []models.Disaster
	for _, addr := range []string{"A", "B", "C", "D", "E"} {
		entries = append(entries, entry("火災", addr, "10:00"))
	}
	events, _ := Synthesize([]models.Record{record("012025", "函館市消防本部", entries...)}, nil, now)
	seen := make(map[string]bool)
	for _, g := range guids(events) {
		if seen[g] {
			t.Errorf("duplicate GUID %q", g)
		}
		seen[g] = true
	}
}
