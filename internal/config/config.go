// Package config reads the aggregator's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	// Embedded zone database, so DISPATCH_TIMEZONE resolves in minimal images.
	_ "time/tzdata"
)

type Config struct {
	OutputDir   string         // DISPATCH_OUTPUT_DIR (default "dist")
	Location    *time.Location // DISPATCH_TIMEZONE (default "Asia/Tokyo")
	HTTPTimeout time.Duration  // DISPATCH_HTTP_TIMEOUT (default 20s)
	Workers     int            // DISPATCH_WORKERS (default 4)
	UserAgent   string         // DISPATCH_USER_AGENT (optional, empty = built-in agent)
	FeedLink    string         // DISPATCH_FEED_LINK (optional, channel link of the feed)
	MetricsFile string         // DISPATCH_METRICS_FILE (optional, empty = no textfile)
	LogLevel    string         // LOG_LEVEL (default "info")

	// Publishing settings
	WebDAVURL      string // DISPATCH_WEBDAV_URL (enables WebDAV when set)
	WebDAVUser     string // DISPATCH_WEBDAV_USER
	WebDAVPassword string // DISPATCH_WEBDAV_PASSWORD
	S3Bucket       string // DISPATCH_S3_BUCKET (enables S3 when set)
	S3Prefix       string // DISPATCH_S3_PREFIX (key prefix, default none)
	S3Region       string // DISPATCH_S3_REGION (default "ap-northeast-1")
	S3Endpoint     string // DISPATCH_S3_ENDPOINT (custom endpoint for MinIO)
}

func Load() (*Config, error) {
	c := &Config{
		OutputDir:      envOrDefault("DISPATCH_OUTPUT_DIR", "dist"),
		UserAgent:      os.Getenv("DISPATCH_USER_AGENT"),
		FeedLink:       os.Getenv("DISPATCH_FEED_LINK"),
		MetricsFile:    os.Getenv("DISPATCH_METRICS_FILE"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		WebDAVURL:      os.Getenv("DISPATCH_WEBDAV_URL"),
		WebDAVUser:     os.Getenv("DISPATCH_WEBDAV_USER"),
		WebDAVPassword: os.Getenv("DISPATCH_WEBDAV_PASSWORD"),
		S3Bucket:       os.Getenv("DISPATCH_S3_BUCKET"),
		S3Prefix:       os.Getenv("DISPATCH_S3_PREFIX"),
		S3Region:       envOrDefault("DISPATCH_S3_REGION", "ap-northeast-1"),
		S3Endpoint:     os.Getenv("DISPATCH_S3_ENDPOINT"),
	}

	tz := envOrDefault("DISPATCH_TIMEZONE", "Asia/Tokyo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", tz, err)
	}
	c.Location = loc

	timeout, err := time.ParseDuration(envOrDefault("DISPATCH_HTTP_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("DISPATCH_HTTP_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("DISPATCH_HTTP_TIMEOUT must be positive, got %s", timeout)
	}
	c.HTTPTimeout = timeout

	workers, err := strconv.Atoi(envOrDefault("DISPATCH_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("DISPATCH_WORKERS: %w", err)
	}
	if workers < 1 {
		return nil, fmt.Errorf("DISPATCH_WORKERS must be at least 1, got %d", workers)
	}
	c.Workers = workers

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
