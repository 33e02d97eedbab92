package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingFetcher records how often each URL is fetched.
type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
	fail  map[string]error
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{calls: make(map[string]int), fail: make(map[string]error)}
}

func (f *countingFetcher) Fetch(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.calls[req.URL]++
	err := f.fail[req.URL]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return "", err
	}
	return "body of " + req.URL, nil
}

func (f *countingFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func TestCacheFetchesEachURLOnce(t *testing.T) {
	f := newCountingFetcher()
	c := NewCache(f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, err := c.Get(ctx, Request{URL: "https://a.example/"})
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if body != "body of https://a.example/" {
			t.Errorf("body = %q", body)
		}
	}
	if _, err := c.Get(ctx, Request{URL: "https://b.example/"}); err != nil {
		t.Fatalf("Get error: %v", err)
	}

	if got := f.count("https://a.example/"); got != 1 {
		t.Errorf("a fetched %d times, want 1", got)
	}
	if got := c.Fetches(); got != 2 {
		t.Errorf("Fetches() = %d, want 2", got)
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestCacheConcurrentGetsShareOneFetch(t *testing.T) {
	f := newCountingFetcher()
	f.delay = 20 * time.Millisecond
	c := NewCache(f)

	var wg sync.WaitGroup
	var okCount atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := c.Get(context.Background(), Request{URL: "https://shared.example/"})
			if err == nil && body == "body of https://shared.example/" {
				okCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := f.count("https://shared.example/"); got != 1 {
		t.Errorf("shared URL fetched %d times, want 1", got)
	}
	if okCount.Load() != 16 {
		t.Errorf("%d of 16 callers got the body", okCount.Load())
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	f := newCountingFetcher()
	boom := errors.New("connection refused")
	f.fail["https://down.example/"] = boom
	c := NewCache(f)
	ctx := context.Background()

	if _, err := c.Get(ctx, Request{URL: "https://down.example/"}); !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failure, want 0", c.Len())
	}

	f.mu.Lock()
	delete(f.fail, "https://down.example/")
	f.mu.Unlock()

	body, err := c.Get(ctx, Request{URL: "https://down.example/"})
	if err != nil {
		t.Fatalf("retry Get error: %v", err)
	}
	if body == "" {
		t.Error("expected body on retry")
	}
	if got := f.count("https://down.example/"); got != 2 {
		t.Errorf("fetched %d times, want 2", got)
	}
}

func TestCacheWaiterHonoursContext(t *testing.T) {
	f := newCountingFetcher()
	f.delay = 200 * time.Millisecond
	c := NewCache(f)

	go c.Get(context.Background(), Request{URL: "https://slow.example/"})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, Request{URL: "https://slow.example/"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get error = %v, want deadline exceeded", err)
	}
}
