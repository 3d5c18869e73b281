// Package detector runs every input channel through one evaluation pipeline:
// normalize the input, score it, and attach the classification.
//
// Basic usage:
//
//	d, err := detector.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//	rep, err := d.Lookup(ctx, "https://www.instagram.com/jane_doe/")
//
// Or wire the channels yourself:
//
//	d := detector.New(detector.WithFetcher(client), detector.WithExtractor(ocr.New()))
//	rep, err := d.Manual(profile.Profile{Username: "jane", Followers: 10, ...})
package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/config"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/httpcache"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/lookup"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/ocr"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/score"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/tabular"
)

// Channel names the input channel a report came from.
type Channel string

// Input channels.
const (
	ChannelBatch      Channel = "batch"
	ChannelManual     Channel = "manual"
	ChannelLookup     Channel = "lookup"
	ChannelScreenshot Channel = "screenshot"
)

// Report is the outcome of scoring one input.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Report struct {
	Channel  Channel     `json:"channel"`
	Row      int         `json:"row,omitempty"`      // 1-based data row, batch only
	Source   string      `json:"source,omitempty"`   // file or raw input the report was built from
	Username string      `json:"username,omitempty"` // empty for screenshots
	Score    int         `json:"score"`
	Reasons  []string    `json:"reasons"`
	Label    score.Label `json:"label"`
	Warning  string      `json:"warning,omitempty"`
	Text     string      `json:"text,omitempty"` // extracted screenshot text
}

// Suspicious reports whether the report is labeled suspicious.
func (r Report) Suspicious() bool { return r.Label == score.LabelSuspicious }

func newReport(ch Channel, res score.Result) Report {
	return Report{
		Channel: ch,
		Score:   res.Score,
		Reasons: res.Reasons,
		Label:   res.Label(),
	}
}

// BatchResult holds the outcome of a tabular upload.
type BatchResult struct {
	Reports []Report
	Errors  []*profile.RecordError // rows that could not be scored
}

// Rows returns the number of data rows read.
func (b *BatchResult) Rows() int { return len(b.Reports) + len(b.Errors) }

// Fetcher looks up a profile by username or link.
type Fetcher interface {
	Fetch(ctx context.Context, input string) (*profile.Profile, error)
}

// TextExtractor reads the text of a screenshot.
type TextExtractor interface {
	Extract(ctx context.Context, img io.Reader) (string, error)
}

// Detector scores profiles from every channel.
type Detector struct {
	fetcher   Fetcher
	extractor TextExtractor
	cache     *httpcache.Cache
	logger    *slog.Logger
}

// Option configures a Detector.
type Option func(*options)

type options struct {
	fetcher   Fetcher
	extractor TextExtractor
	logger    *slog.Logger
}

// WithFetcher sets the lookup channel's profile source.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithExtractor sets the screenshot channel's text extractor.
func WithExtractor(e TextExtractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a Detector. Channels without a fetcher or extractor degrade:
// Lookup reports profile.ErrConfigurationMissing and Screenshot scores empty text.
func New(opts ...Option) *Detector {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return &Detector{fetcher: o.fetcher, extractor: o.extractor, logger: o.logger}
}

// Open builds a Detector with every channel wired from cfg: the lookup client
// with its response cache, and the OCR extractor. Options override the
// configured channels. Call Close when done.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Detector, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	var cache *httpcache.Cache
	if !cfg.Cache.Disabled {
		var err error
		if cfg.Cache.Dir != "" {
			cache, err = httpcache.NewWithPath(cfg.Cache.TTL, cfg.Cache.Dir)
		} else {
			cache, err = httpcache.New(cfg.Cache.TTL)
		}
		if err != nil {
			o.logger.WarnContext(ctx, "response cache unavailable, continuing without it", "error", err)
			cache = nil
		}
	}
	if cache == nil {
		// Responses live in memory for this process only.
		cache = httpcache.NewNull()
	}

	if o.fetcher == nil {
		client, err := lookup.New(ctx, cfg.Lookup, lookup.WithLogger(o.logger), lookup.WithHTTPCache(cache))
		if err != nil {
			_ = cache.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("lookup client: %w", err)
		}
		o.fetcher = client
	}

	if o.extractor == nil {
		ex := ocr.New(
			ocr.WithBinary(cfg.OCR.Binary),
			ocr.WithLanguage(cfg.OCR.Language),
			ocr.WithTimeout(cfg.OCR.Timeout),
			ocr.WithLogger(o.logger),
		)
		if !ex.Available() {
			o.logger.DebugContext(ctx, "no OCR engine found, screenshots will score empty text")
		}
		o.extractor = ex
	}

	return &Detector{fetcher: o.fetcher, extractor: o.extractor, cache: cache, logger: o.logger}, nil
}

// Close releases the response cache, if any.
func (d *Detector) Close() error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Close()
}

// Batch scores every row of a CSV or XLSX table. Malformed rows are skipped
// and returned in BatchResult.Errors; they never abort the rest.
// An error is returned only when the table itself cannot be read.
func (d *Detector) Batch(ctx context.Context, r io.Reader, format tabular.Format) (*BatchResult, error) {
	b, err := tabular.Read(r, format)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", format, err)
	}

	res := &BatchResult{Errors: b.Errors}
	for _, e := range b.Errors {
		d.logger.WarnContext(ctx, "skipping row", "row", e.Row, "error", e)
	}
	for _, rec := range b.Records {
		rep := newReport(ChannelBatch, score.Profile(rec.Profile))
		rep.Row = rec.Row
		rep.Username = rec.Username
		res.Reports = append(res.Reports, rep)
	}
	d.logger.InfoContext(ctx, "batch scored", "rows", b.Rows(), "scored", len(res.Reports), "skipped", len(res.Errors))
	return res, nil
}

// Manual scores a profile entered by hand. Invalid values are reported as a
// *profile.RecordError.
func (d *Detector) Manual(p profile.Profile) (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	p.ProfilePic = strings.ToLower(strings.TrimSpace(p.ProfilePic))
	rep := newReport(ChannelManual, score.Profile(p))
	rep.Username = p.Username
	return rep, nil
}

// Lookup fetches the account named by input (a username or profile link)
// and scores it. No report is produced on failure.
func (d *Detector) Lookup(ctx context.Context, input string) (Report, error) {
	if d.fetcher == nil {
		return Report{}, profile.ErrConfigurationMissing
	}

	p, err := d.fetcher.Fetch(ctx, input)
	if err != nil {
		return Report{}, err
	}
	if err := p.Validate(); err != nil {
		return Report{}, fmt.Errorf("lookup returned an unusable profile: %w", err)
	}

	rep := newReport(ChannelLookup, score.Profile(*p))
	rep.Source = input
	rep.Username = p.Username
	return rep, nil
}

// Screenshot extracts the text of a profile screenshot and scores it.
// When no text can be extracted, empty text is scored and the report
// carries a warning. An error is returned only if ctx is done.
func (d *Detector) Screenshot(ctx context.Context, img io.Reader) (Report, error) {
	var text, warning string
	if d.extractor == nil {
		warning = profile.ErrExtractionUnavailable.Error()
	} else {
		var err error
		text, err = d.extractor.Extract(ctx, img)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Report{}, ctxErr
		}
		switch {
		case errors.Is(err, profile.ErrExtractionUnavailable):
			d.logger.WarnContext(ctx, "scoring screenshot without text", "error", err)
			text, warning = "", err.Error()
		case err != nil:
			return Report{}, fmt.Errorf("extract text: %w", err)
		}
	}

	rep := d.ScoreText(text)
	rep.Warning = warning
	return rep, nil
}

// ScoreText scores text already extracted from a screenshot.
func (*Detector) ScoreText(text string) Report {
	rep := newReport(ChannelScreenshot, score.Signals(ocr.Parse(text)))
	rep.Text = text
	return rep
}
