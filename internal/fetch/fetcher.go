package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// DefaultUserAgent identifies the aggregator to agency web servers.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:137.0) Gecko/20100101 Firefox/137.0 edbot v0.1.0(https://github.com/oageo/emergency-dispatch)"

// maxBodySize bounds how much of a page is read.
const maxBodySize = 8 << 20

// Encoding is the character encoding an agency page is served in.
type Encoding int

const (
	UTF8 Encoding = iota
	ShiftJIS
)

func (e Encoding) String() string {
	if e == ShiftJIS {
		return "shift_jis"
	}
	return "utf-8"
}

// Request describes one page fetch.
type Request struct {
	URL      string
	Host     string // optional Host header override
	Encoding Encoding
}

// Fetcher retrieves and decodes a page body.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// headerTransport adds the browser-like headers agency sites expect.
type headerTransport struct {
	UserAgent string
	Transport http.RoundTripper
}

// RoundTrip adds required headers to each request.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")
	return t.Transport.RoundTrip(req)
}

// HTTPFetcher fetches pages over HTTP with a bounded timeout.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher. An empty userAgent uses DefaultUserAgent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &headerTransport{UserAgent: userAgent, Transport: http.DefaultTransport},
		},
	}
}

// Fetch performs a GET and returns the body decoded per req.Encoding.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", req.URL, err)
	}
	return Decode(body, req.Encoding)
}

// Decode converts a raw page body to a UTF-8 string.
func Decode(body []byte, enc Encoding) (string, error) {
	switch enc {
	case ShiftJIS:
		out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), body)
		if err != nil {
			return "", fmt.Errorf("decode shift_jis: %w", err)
		}
		return string(out), nil
	default:
		if !utf8.Valid(body) {
			return "", fmt.Errorf("body is not valid utf-8")
		}
		return string(body), nil
	}
}
