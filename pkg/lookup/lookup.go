// Package lookup fetches public profile stats from a third-party lookup
// service and normalizes them into a profile.Profile.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/config"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/httpcache"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
)

// Request headers the service authenticates with.
const (
	HeaderKey  = "X-RapidAPI-Key"
	HeaderHost = "X-RapidAPI-Host"
)

// Client handles lookup requests.
type Client struct {
	fetcher  *httpcache.Client
	logger   *slog.Logger
	apiKey   string
	host     string
	endpoint string
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	cache      httpcache.Cacher
	limiter    *httpcache.RateLimiter
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPCache sets the response cache.
func WithHTTPCache(cache httpcache.Cacher) Option {
	return func(o *options) { o.cache = cache }
}

// WithRateLimiter overrides the per-host pacing built from the config.
func WithRateLimiter(limiter *httpcache.RateLimiter) Option {
	return func(o *options) { o.limiter = limiter }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a lookup client. Missing credentials are not an error here;
// Fetch reports them for every call.
func New(_ context.Context, cfg config.Lookup, opts ...Option) (*Client, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultLookupTimeout
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: timeout}
	}
	if o.limiter == nil {
		o.limiter = httpcache.NewRateLimiter(cfg.MinDelay)
	}

	c := &Client{
		fetcher: httpcache.NewClient(o.httpClient, o.cache, o.limiter, o.logger),
		logger:  o.logger,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		host:    strings.TrimSpace(cfg.Host),
		timeout: timeout,
	}
	if cfg.Configured() {
		c.endpoint = cfg.Endpoint()
		if _, err := url.Parse(c.endpoint); err != nil {
			return nil, fmt.Errorf("invalid lookup endpoint %q: %w", c.endpoint, err)
		}
	}
	return c, nil
}

// Configured reports whether lookups can be attempted.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.host != ""
}

// Fetch looks up the account named by input, which may be a bare username or
// a pasted profile link.
func (c *Client) Fetch(ctx context.Context, input string) (*profile.Profile, error) {
	if !c.Configured() {
		return nil, profile.ErrConfigurationMissing
	}

	username := profile.UsernameFromInput(input)
	if username == "" {
		return nil, &profile.RecordError{Missing: []string{profile.FieldUsername}}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	apiURL := c.endpoint + "/getprofile/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(HeaderKey, c.apiKey)
	req.Header.Set(HeaderHost, c.host)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpcache.UserAgent)

	c.logger.InfoContext(ctx, "looking up profile", "username", username)

	body, err := c.fetcher.Fetch(ctx, req, cacheable)
	if err != nil {
		return nil, upstreamError(err)
	}

	p, err := parseResponse(body)
	if err != nil {
		return nil, err
	}
	if p.Username == "" {
		p.Username = username
	}
	c.logger.DebugContext(ctx, "profile found", "username", p.Username,
		"followers", p.Followers, "following", p.Following, "posts", p.Posts)
	return p, nil
}

func upstreamError(err error) error {
	var httpErr *httpcache.HTTPError
	if errors.As(err, &httpErr) {
		msg := errorMessage([]byte(httpErr.Body))
		if msg == "" {
			msg = http.StatusText(httpErr.StatusCode)
		}
		return &profile.UpstreamError{StatusCode: httpErr.StatusCode, Message: msg}
	}
	return &profile.UpstreamError{Message: "request failed", Err: err}
}

// cacheable keeps error payloads out of the cache.
func cacheable(body []byte) bool {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return isNull(envelope.Error)
}

type apiResponse struct {
	Error        json.RawMessage `json:"error"`
	Username     string          `json:"username"`
	Biography    string          `json:"biography"`
	ProfilePic   string          `json:"profile_pic_url"`
	ProfilePicHD string          `json:"profile_pic_url_hd"`
	Followers    count           `json:"followers"`
	Following    count           `json:"following"`
	Posts        count           `json:"posts"`
}

func parseResponse(data []byte) (*profile.Profile, error) {
	var resp apiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &profile.UpstreamError{Message: "invalid response", Err: err}
	}
	if !isNull(resp.Error) {
		return nil, &profile.UpstreamError{Message: errorText(resp.Error)}
	}

	pic := profile.PicNo
	if strings.TrimSpace(resp.ProfilePic) != "" || strings.TrimSpace(resp.ProfilePicHD) != "" {
		pic = profile.PicYes
	}

	return &profile.Profile{
		Username:   strings.TrimSpace(resp.Username),
		Followers:  int(resp.Followers),
		Following:  int(resp.Following),
		Posts:      int(resp.Posts),
		Bio:        resp.Biography,
		ProfilePic: pic,
	}, nil
}

// errorMessage extracts a message from an error body, which services shape
// as {"error": ...} or {"message": ...}. It returns the raw body otherwise.
func errorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body))
	}
	if !isNull(envelope.Error) {
		return errorText(envelope.Error)
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return strings.TrimSpace(string(body))
}

// errorText renders an "error" value, which may be a string or any JSON value.
func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// count accepts a JSON number, a numeric string, or null. Anything else,
// including negatives, reads as 0. Counts too large for an int are clamped
// to math.MaxInt.
type count int

func (c *count) UnmarshalJSON(data []byte) error {
	*c = 0
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.Atoi(s); err == nil {
		if n > 0 {
			*c = count(n)
		}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(f) || f <= 0 {
		return nil
	}
	if f >= float64(math.MaxInt) {
		*c = math.MaxInt
		return nil
	}
	*c = count(f)
	return nil
}
