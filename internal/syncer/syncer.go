// Package syncer orchestrates one aggregation run: collecting agency pages
// into per-authority records, building the published artifacts from them
// and mirroring those artifacts to the configured destinations.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"emergency-dispatch/internal/aggregate"
	"emergency-dispatch/internal/export"
	"emergency-dispatch/internal/feed"
	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/metrics"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/publish"
	"emergency-dispatch/internal/sources"
	"emergency-dispatch/internal/store"
)

// Artifact file names inside the output directory.
const (
	FeedFile     = "feed.xml"
	IndexFile    = "identities.json"
	ListFile     = "list.json"
	UnionFile    = "all.json"
	CalendarFile = "feed.ics"
)

// Step selects the stages a run performs.
type Step uint8

const (
	StepCollect Step = 1 << iota
	StepBuild
	StepPublish

	AllSteps = StepCollect | StepBuild | StepPublish
)

// Options configures a Syncer.
type Options struct {
	Channel     feed.Channel
	Location    *time.Location // zone agency times of day are reported in
	Workers     int
	DryRun      bool   // build locally but skip publishing
	MetricsFile string // optional Prometheus textfile
}

// Syncer runs the aggregation pipeline over one output directory.
type Syncer struct {
	logger       *slog.Logger
	dir          *store.Dir
	fetcher      fetch.Fetcher
	adapters     []sources.Adapter
	destinations []publish.Destination
	opts         Options
	now          func() time.Time
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, dir *store.Dir, fetcher fetch.Fetcher, adapters []sources.Adapter, destinations []publish.Destination, opts Options) *Syncer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Syncer{
		logger:       logger,
		dir:          dir,
		fetcher:      fetcher,
		adapters:     adapters,
		destinations: destinations,
		opts:         opts,
		now:          time.Now,
	}
}

// Build is the outcome of one build stage.
type Build struct {
	Events    []models.Event
	Stats     feed.Stats
	Records   int
	Artifacts []publish.Artifact
}

// run carries the per-invocation state of one Run.
type run struct {
	id      string
	start   time.Time
	logger  *slog.Logger
	metrics *metrics.Run
}

// Run performs the selected steps once. Every invocation gets its own run
// identifier, attached to all of its log lines and to the identity index.
// Collection failing for every source aborts the run before anything is
// built; publishing failures are logged and never fail the run.
func (s *Syncer) Run(ctx context.Context, steps Step) (err error) {
	r := &run{id: uuid.New().String(), start: s.now(), metrics: metrics.New()}
	r.logger = s.logger.With("run", r.id)
	r.logger.Info("Starting run.", "sources", len(s.adapters), "dir", s.dir.Path())

	defer func() {
		r.metrics.Finished(r.start, s.now(), err == nil && steps&StepBuild != 0)
		if werr := r.metrics.WriteFile(s.opts.MetricsFile); werr != nil {
			r.logger.Warn("Failed to write metrics file", "file", s.opts.MetricsFile, "error", werr)
		}
	}()

	if steps&StepCollect != 0 {
		if _, err := s.collect(ctx, r); err != nil {
			return fmt.Errorf("collection failed: %w", err)
		}
	}

	if steps&StepBuild == 0 {
		r.logger.Info("Run finished.")
		return nil
	}
	b, err := s.build(r)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if steps&StepPublish != 0 {
		s.publish(ctx, r, b.Artifacts)
	}

	r.logger.Info("Run finished.", "items", len(b.Events), "elapsed", s.now().Sub(r.start).Round(time.Millisecond))
	return nil
}

// collect invokes every adapter through a fresh fetch cache, so no page is
// fetched twice within the run.
func (s *Syncer) collect(ctx context.Context, r *run) (aggregate.Result, error) {
	cache := fetch.NewCache(s.fetcher)
	driver := aggregate.NewDriver(s.dir, cache, s.opts.Workers, r.logger, r.metrics)
	res, err := driver.RunAll(ctx, s.adapters)
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		r.logger.Warn("Some sources failed, continuing with the rest.", "failed", res.Failed, "total", res.Total)
	}
	return res, nil
}

// build turns the persisted records into every artifact and writes them to
// the output directory.
func (s *Syncer) build(r *run) (*Build, error) {
	now := r.start.In(s.opts.Location)

	records, err := s.dir.Load()
	if err != nil {
		return nil, err
	}
	prior := feed.Recover(s.dir.File(IndexFile), s.dir.File(FeedFile), r.logger)
	events, stats := feed.Synthesize(records, prior, now)
	if stats.Dropped > 0 {
		r.logger.Warn("Dropped entries with an unreadable time of day", "count", stats.Dropped)
	}

	b := &Build{Events: events, Stats: stats, Records: len(records)}

	var doc bytes.Buffer
	if err := feed.Render(&doc, events, s.opts.Channel, now); err != nil {
		return nil, err
	}
	if err := s.writeArtifact(b, FeedFile, doc.Bytes()); err != nil {
		return nil, err
	}

	index, err := feed.NewIndex(events, now, r.id).Marshal()
	if err != nil {
		return nil, err
	}
	if err := s.writeArtifact(b, IndexFile, index); err != nil {
		return nil, err
	}

	list, err := export.MarshalCodes(export.Codes(records))
	if err != nil {
		return nil, err
	}
	if err := s.writeArtifact(b, ListFile, list); err != nil {
		return nil, err
	}

	union, err := export.MarshalUnion(export.Union(records))
	if err != nil {
		return nil, err
	}
	if err := s.writeArtifact(b, UnionFile, union); err != nil {
		return nil, err
	}

	if err := s.writeCalendar(b, now); err != nil {
		return nil, err
	}

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", rec.Code, err)
		}
		b.Artifacts = append(b.Artifacts, publish.Artifact{Name: rec.Code + ".json", Data: data})
	}

	r.metrics.FeedItems(len(events))
	r.logger.Info("Feed built.",
		"records", len(records),
		"items", len(events),
		"recovered", stats.Recovered,
		"suffixed", stats.Suffixed,
		"dropped", stats.Dropped,
	)
	return b, nil
}

// writeCalendar writes the iCalendar view of the feed. With no events the
// stale calendar is removed instead, since an empty calendar is not valid.
func (s *Syncer) writeCalendar(b *Build, now time.Time) error {
	var cal bytes.Buffer
	err := export.WriteCalendar(&cal, b.Events, now)
	if errors.Is(err, export.ErrNoEvents) {
		if err := os.Remove(s.dir.File(CalendarFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", CalendarFile, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	return s.writeArtifact(b, CalendarFile, cal.Bytes())
}

func (s *Syncer) writeArtifact(b *Build, name string, data []byte) error {
	if err := store.WriteFile(s.dir.File(name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	b.Artifacts = append(b.Artifacts, publish.Artifact{Name: name, Data: data})
	return nil
}

// publish mirrors the artifacts of this run to every destination.
func (s *Syncer) publish(ctx context.Context, r *run, artifacts []publish.Artifact) {
	if len(s.destinations) == 0 {
		r.logger.Debug("No publish destinations configured.")
		return
	}
	if s.opts.DryRun {
		r.logger.Info("[DRY RUN] Would publish artifacts", "destinations", len(s.destinations), "artifacts", len(artifacts))
		return
	}
	p := publish.NewPublisher(s.destinations, r.logger, r.metrics)
	if failed := p.Publish(ctx, artifacts); failed > 0 {
		r.logger.Warn("Some uploads failed, local artifacts are unaffected.", "failed", failed)
	}
}
