// Package httpcache provides cached, retried and paced HTTP fetches for
// the profile lookup service.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// UserAgent identifies sockpuppet to upstream services.
const UserAgent = "sockpuppet/1.0 (+https://github.com/codeGROOVE-dev/sockpuppet)"

// maxErrorBody bounds how much of a failed response is kept for error messages.
const maxErrorBody = 512

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int64
	Misses int64
}

var hits, misses atomic.Int64

// CacheStats returns the current cache statistics.
func CacheStats() Stats {
	return Stats{Hits: hits.Load(), Misses: misses.Load()}
}

// ResetStats resets the cache statistics.
func ResetStats() {
	hits.Store(0)
	misses.Store(0)
}

// Cacher allows external cache implementations.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a Cache persisted under the user cache directory.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "sockpuppet"))
}

// NewNull creates a Cache with no persistence (all gets miss, all sets discard).
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc}
}

// NewWithPath creates a Cache persisted at cachePath.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	store, err := localfs.New[string, []byte]("sockpuppet", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](store, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key converts a URL to a cache key using SHA256.
func Key(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents a non-200 response.
type HTTPError struct {
	URL        string
	Body       string // leading bytes of the response body
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// ResponseValidator reports whether a successful body may be cached.
type ResponseValidator func(body []byte) bool

// Client fetches URLs through an optional cache, retrying transient failures
// and pacing requests per host.
type Client struct {
	http     *http.Client
	cache    Cacher
	limiter  *RateLimiter
	logger   *slog.Logger
	attempts uint
}

// NewClient creates a Client. cache and limiter may be nil.
func NewClient(httpClient *http.Client, cache Cacher, limiter *RateLimiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:     httpClient,
		cache:    cache,
		limiter:  limiter,
		logger:   logger,
		attempts: 2,
	}
}

// Fetch executes req and returns the body of a 200 response.
// Only 200 responses that pass validator (if any) are cached; errors never are,
// so a quota or outage response is retried on the next run.
func (c *Client) Fetch(ctx context.Context, req *http.Request, validator ResponseValidator) ([]byte, error) {
	if c.cache == nil {
		misses.Add(1)
		return c.do(ctx, req)
	}

	var fetched bool
	data, err := c.cache.GetSet(ctx, Key(req.URL.String()), func(ctx context.Context) ([]byte, error) {
		fetched = true
		misses.Add(1)
		c.logger.InfoContext(ctx, "cache miss", "url", req.URL.String())
		body, err := c.do(ctx, req)
		if err != nil {
			return nil, err
		}
		if validator != nil && !validator(body) {
			c.logger.DebugContext(ctx, "skipping cache due to validation failure", "url", req.URL.String())
			return nil, &uncacheable{data: body}
		}
		return body, nil
	}, c.cache.TTL())

	if !fetched {
		hits.Add(1)
		c.logger.DebugContext(ctx, "cache hit", "url", req.URL.String())
	}

	var u *uncacheable
	if errors.As(err, &u) {
		return u.data, nil
	}
	return data, err
}

// uncacheable carries a body that must be returned but not stored.
type uncacheable struct{ data []byte }

func (*uncacheable) Error() string { return "response not cacheable" }

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx, req.URL.Host); err != nil {
					return nil, err
				}
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode != http.StatusOK {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort
				return nil, &HTTPError{
					StatusCode: resp.StatusCode,
					URL:        req.URL.String(),
					Body:       strings.TrimSpace(string(snippet)),
				}
			}

			return io.ReadAll(resp.Body)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.DebugContext(ctx, "retrying HTTP request", "attempt", n+1, "url", req.URL.String(), "error", err)
		}),
	)
}

// isRetryableError returns true for transient errors that should be retried.
func isRetryableError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false // other 4xx errors are permanent
		}
	}
	// Timeouts of the caller's context are final.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
