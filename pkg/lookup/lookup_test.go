package lookup

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/config"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	cfg := config.Lookup{
		APIKey:  "secret",
		Host:    "scraper.example.com",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
	c, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

const johnDoe = `{
	"username": "john_doe",
	"followers": 150,
	"following": "100",
	"posts": 50,
	"biography": "Love photography and travel.",
	"profile_pic_url": "https://cdn.example.com/john.jpg"
}`

func TestFetch(t *testing.T) {
	var gotPath, gotKey, gotHost string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(HeaderKey)
		gotHost = r.Header.Get(HeaderHost)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(johnDoe)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	got, err := c.Fetch(context.Background(), "https://www.instagram.com/john_doe/?hl=en")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := &profile.Profile{
		Username:   "john_doe",
		Followers:  150,
		Following:  100,
		Posts:      50,
		Bio:        "Love photography and travel.",
		ProfilePic: profile.PicYes,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}
	if gotPath != "/getprofile/john_doe" {
		t.Errorf("path = %q, want /getprofile/john_doe", gotPath)
	}
	if gotKey != "secret" || gotHost != "scraper.example.com" {
		t.Errorf("headers = %q, %q", gotKey, gotHost)
	}
}

func TestFetchDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"followers": 10, "following": 500, "posts": null, "profile_pic_url": ""}`)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	got, err := c.Fetch(context.Background(), "  fakebot01 ")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := &profile.Profile{
		Username:   "fakebot01",
		Followers:  10,
		Following:  500,
		ProfilePic: profile.PicNo,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchErrorPayload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"error": "User not found"}`)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithHTTPCache(&mapCache{m: map[string][]byte{}}))
	for range 2 {
		_, err := c.Fetch(context.Background(), "ghost")
		var upErr *profile.UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Fetch() error = %v, want *UpstreamError", err)
		}
		if upErr.Message != "User not found" {
			t.Errorf("Message = %q, want User not found", upErr.Message)
		}
		if !errors.Is(err, profile.ErrUpstream) {
			t.Error("errors.Is(err, ErrUpstream) = false")
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls, want 2 (error payloads are not cached)", got)
	}
}

func TestFetchHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantMsg string
	}{
		{"message field", `{"message":"You are not subscribed to this API."}`, http.StatusForbidden, "You are not subscribed to this API."},
		{"plain body", "nope", http.StatusNotFound, "nope"},
		{"empty body", "", http.StatusUnauthorized, "Unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body)) //nolint:errcheck // test helper
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_, err := c.Fetch(context.Background(), "john_doe")
			var upErr *profile.UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("Fetch() error = %v, want *UpstreamError", err)
			}
			if upErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", upErr.StatusCode, tt.status)
			}
			if upErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", upErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.Fetch(context.Background(), "john_doe")
	if !errors.Is(err, profile.ErrUpstream) {
		t.Fatalf("Fetch() error = %v, want ErrUpstream", err)
	}
	var upErr *profile.UpstreamError
	if errors.As(err, &upErr) && upErr.Err == nil {
		t.Error("UpstreamError.Err = nil, want the transport error")
	}
}

func TestFetchInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if _, err := c.Fetch(context.Background(), "john_doe"); !errors.Is(err, profile.ErrUpstream) {
		t.Errorf("Fetch() error = %v, want ErrUpstream", err)
	}
}

func TestFetchNotConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	tests := []struct {
		name string
		cfg  config.Lookup
	}{
		{"no key", config.Lookup{Host: "scraper.example.com", BaseURL: server.URL}},
		{"no host", config.Lookup{APIKey: "secret", BaseURL: server.URL}},
		{"blank", config.Lookup{APIKey: "  ", Host: " ", BaseURL: server.URL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c.Configured() {
				t.Error("Configured() = true")
			}
			_, err = c.Fetch(context.Background(), "john_doe")
			if !errors.Is(err, profile.ErrConfigurationMissing) {
				t.Errorf("Fetch() error = %v, want ErrConfigurationMissing", err)
			}
			if err != nil && err.Error() != "API not configured" {
				t.Errorf("Fetch() error text = %q", err)
			}
		})
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("server saw %d calls, want 0", got)
	}
}

func TestFetchEmptyInput(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	for _, input := range []string{"   ", "https://www.tiktok.com/@"} {
		if _, err := c.Fetch(context.Background(), input); !errors.Is(err, profile.ErrMalformedRecord) {
			t.Errorf("Fetch(%q) error = %v, want ErrMalformedRecord", input, err)
		}
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		in   string
		want count
	}{
		{`150`, 150},
		{`"150"`, 150},
		{`"1,204"`, 1204},
		{`2.0e3`, 2000},
		{`null`, 0},
		{`""`, 0},
		{`"many"`, 0},
		{`-4`, 0},
		{`true`, 0},
		{`1e20`, math.MaxInt},
		{`"99999999999999999999"`, math.MaxInt},
		{`1e400`, math.MaxInt},
		{`-1e20`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var c count
			if err := c.UnmarshalJSON([]byte(tt.in)); err != nil {
				t.Fatalf("UnmarshalJSON(%s) error = %v", tt.in, err)
			}
			if c != tt.want {
				t.Errorf("UnmarshalJSON(%s) = %d, want %d", tt.in, c, tt.want)
			}
		})
	}
}

// mapCache is an in-memory httpcache.Cacher.
type mapCache struct {
	m map[string][]byte
}

func (c *mapCache) GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), _ ...time.Duration) ([]byte, error) {
	if v, ok := c.m[key]; ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.m[key] = v
	return v, nil
}

func (*mapCache) TTL() time.Duration { return time.Hour }
