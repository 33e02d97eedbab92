// Package publish mirrors built artifacts to remote destinations.
package publish

import (
	"context"
	"log/slog"
	"path"

	"emergency-dispatch/internal/metrics"
)

// Destination receives artifact uploads.
type Destination interface {
	// Name identifies the destination in logs and metrics.
	Name() string
	// Upload stores data under name, replacing any previous object.
	Upload(ctx context.Context, name string, data []byte) error
}

// Artifact is one built file.
type Artifact struct {
	Name string
	Data []byte
}

// Publisher uploads artifacts to every configured destination.
// Upload failures are logged and counted but never abort a run: the local
// artifacts stay authoritative.
type Publisher struct {
	destinations []Destination
	logger       *slog.Logger
	metrics      *metrics.Run
}

// NewPublisher creates a Publisher.
func NewPublisher(destinations []Destination, logger *slog.Logger, m *metrics.Run) *Publisher {
	return &Publisher{destinations: destinations, logger: logger, metrics: m}
}

// Enabled reports whether any destination is configured.
func (p *Publisher) Enabled() bool {
	return len(p.destinations) > 0
}

// Publish uploads artifacts and returns the number of failed uploads.
// Uploads not attempted because ctx was cancelled are not counted.
func (p *Publisher) Publish(ctx context.Context, artifacts []Artifact) int {
	failed := 0
	for _, dest := range p.destinations {
		uploaded := 0
		for _, a := range artifacts {
			if err := ctx.Err(); err != nil {
				p.logger.Warn("Publishing cancelled", "destination", dest.Name(), "error", err)
				return failed
			}
			err := dest.Upload(ctx, a.Name, a.Data)
			p.metrics.Published(dest.Name(), err)
			if err != nil {
				failed++
				p.logger.Error("Failed to upload artifact", "destination", dest.Name(), "file", a.Name, "error", err)
				continue
			}
			uploaded++
		}
		p.logger.Info("Published artifacts", "destination", dest.Name(), "uploaded", uploaded, "total", len(artifacts))
	}
	return failed
}

// contentType returns the MIME type an artifact is served with.
func contentType(name string) string {
	switch path.Ext(name) {
	case ".xml":
		return "application/rss+xml; charset=utf-8"
	case ".json":
		return "application/json"
	case ".ics":
		return "text/calendar; charset=utf-8"
	case ".prom":
		return "text/plain; version=0.0.4"
	default:
		return "application/octet-stream"
	}
}
