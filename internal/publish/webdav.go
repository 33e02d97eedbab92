package publish

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-webdav"
)

// WebDAVDestination uploads artifacts into a WebDAV collection.
type WebDAVDestination struct {
	client   *webdav.Client
	endpoint string
}

// NewWebDAVDestination creates a destination for the collection at endpoint.
// Credentials are sent with basic auth when username is set.
func NewWebDAVDestination(endpoint, username, password string, timeout time.Duration) (*WebDAVDestination, error) {
	var httpClient webdav.HTTPClient = &http.Client{Timeout: timeout}
	if username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}
	client, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}
	return &WebDAVDestination{client: client, endpoint: endpoint}, nil
}

// Name implements Destination.
func (d *WebDAVDestination) Name() string { return "webdav" }

// Upload implements Destination. The name is resolved relative to the
// collection URL.
func (d *WebDAVDestination) Upload(ctx context.Context, name string, data []byte) error {
	w, err := d.client.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create %s on WebDAV server: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s to WebDAV server: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload %s to WebDAV server: %w", name, err)
	}
	return nil
}
