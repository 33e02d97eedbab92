// Package aggregate invokes every source adapter once and persists the
// records of those that succeed.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/metrics"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/sources"
)

var (
	// ErrAllFailed is returned when every adapter of a run failed.
	ErrAllFailed = errors.New("all sources failed")
	// ErrNoAdapters is returned when a run is started without adapters.
	ErrNoAdapters = errors.New("no sources configured")
)

// Persister stores per-authority records.
type Persister interface {
	Write(rec models.Record) error
	Remove(code string) error
}

// Failure describes one adapter that did not produce a record.
type Failure struct {
	Code string
	Name string
	Err  error
}

// Result summarises a run.
type Result struct {
	Total     int
	Persisted int
	Failed    int
	Events    int
	Failures  []Failure
}

// Driver runs source adapters against a shared fetch cache.
type Driver struct {
	store   Persister
	cache   *fetch.Cache
	workers int
	logger  *slog.Logger
	metrics *metrics.Run
}

// NewDriver creates a Driver. workers <= 1 invokes adapters sequentially.
func NewDriver(store Persister, cache *fetch.Cache, workers int, logger *slog.Logger, m *metrics.Run) *Driver {
	if workers < 1 {
		workers = 1
	}
	return &Driver{store: store, cache: cache, workers: workers, logger: logger, metrics: m}
}

type outcome struct {
	rec models.Record
	err error
}

// RunAll invokes every adapter and persists each successful record.
// A failing adapter is logged and counted and its stale record is removed;
// the run fails only when every adapter failed. Outcomes are handled in
// adapter order regardless of the worker count.
func (d *Driver) RunAll(ctx context.Context, adapters []sources.Adapter) (Result, error) {
	res := Result{Total: len(adapters)}
	if len(adapters) == 0 {
		return res, ErrNoAdapters
	}

	outcomes := d.collect(ctx, adapters)

	for i, a := range adapters {
		out := outcomes[i]
		err := out.err
		if err == nil {
			err = d.persist(a, out.rec)
		}
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{Code: a.Code(), Name: a.Name(), Err: err})
			d.metrics.SourceFailed()
			d.logger.Error("Source failed", "code", a.Code(), "name", a.Name(), "error", err)
			if rmErr := d.store.Remove(a.Code()); rmErr != nil {
				d.logger.Warn("Could not remove stale record", "code", a.Code(), "error", rmErr)
			}
			continue
		}
		res.Persisted++
		res.Events += len(out.rec.Disasters)
		d.metrics.SourceSucceeded(a.Code(), len(out.rec.Disasters))
		d.logger.Info("Source collected", "code", a.Code(), "name", a.Name(), "events", len(out.rec.Disasters))
	}
	d.metrics.Fetches(d.cache.Fetches())

	d.logger.Info("Collection finished", "sources", res.Total, "persisted", res.Persisted, "failed", res.Failed, "fetches", d.cache.Fetches())
	if res.Failed == res.Total {
		return res, fmt.Errorf("%w (%d of %d)", ErrAllFailed, res.Failed, res.Total)
	}
	return res, nil
}

func (d *Driver) persist(a sources.Adapter, rec models.Record) error {
	if rec.Code != a.Code() {
		return fmt.Errorf("adapter returned record for %q", rec.Code)
	}
	if rec.Disasters == nil {
		rec.Disasters = []models.Disaster{}
	}
	if err := d.store.Write(rec); err != nil {
		return fmt.Errorf("persist record: %w", err)
	}
	return nil
}

// collect runs the adapters on a fixed-size pool and returns their
// outcomes indexed like adapters.
func (d *Driver) collect(ctx context.Context, adapters []sources.Adapter) []outcome {
	outcomes := make([]outcome, len(adapters))
	jobs := make(chan int)

	n := d.workers
	if n > len(adapters) {
		n = len(adapters)
	}
	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = d.invoke(ctx, adapters[i])
			}
		}()
	}
	for i := range adapters {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

// invoke calls one adapter, turning a panic in its parsing code into an error.
func (d *Driver) invoke(ctx context.Context, a sources.Adapter) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()
	d.logger.Debug("Collecting source", "code", a.Code(), "name", a.Name())
	rec, err := a.Collect(ctx, d.cache)
	return outcome{rec: rec, err: err}
}
