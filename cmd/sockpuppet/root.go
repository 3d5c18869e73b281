package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/config"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/detector"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/httpcache"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/report"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errIncomplete means at least one input produced no report. The cause has
// already been printed.
var errIncomplete = errors.New("some inputs could not be scored")

// app holds the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	cfgFile  string
	cacheTTL time.Duration
	debug    bool
	jsonOut  bool
	noCache  bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "sockpuppet",
		Short:         "Score social media profiles for signs of being fake",
		Long:          "sockpuppet rates how likely a social media account is to be fake from its public stats.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.BoolVarP(&a.debug, "debug", "v", false, "enable debug logging")
	flags.BoolVar(&a.jsonOut, "json", false, "write results as JSON")
	flags.BoolVar(&a.noCache, "no-cache", false, "keep lookup responses in memory only")
	flags.DurationVar(&a.cacheTTL, "cache-ttl", 0, "lookup cache time-to-live (default 24h)")

	root.AddCommand(
		newBatchCmd(a),
		newManualCmd(a),
		newLookupCmd(a),
		newScreenshotCmd(a),
		newSampleCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sockpuppet version %s\n", version)
			},
		},
	)
	return root
}

// setup builds the logger and loads the configuration, then applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if a.debug {
		logLevel = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.noCache {
		cfg.Cache.Disabled = true
	}
	if a.cacheTTL > 0 {
		cfg.Cache.TTL = a.cacheTTL
	}
	a.cfg = cfg
	return nil
}

// openDetector wires every channel from the loaded configuration.
func (a *app) openDetector(cmd *cobra.Command) (*detector.Detector, func(), error) {
	d, err := detector.Open(cmd.Context(), a.cfg, detector.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := d.Close(); err != nil {
			a.logger.Warn("failed to close cache", "error", err)
		}
		stats := httpcache.CacheStats()
		a.logger.Debug("lookup cache", "hits", stats.Hits, "misses", stats.Misses)
	}
	return d, closeFn, nil
}

// writeReports prints reports as a table or JSON.
func (a *app) writeReports(w io.Writer, reports []detector.Report, showText bool) error {
	if a.jsonOut {
		if reports == nil {
			reports = []detector.Report{}
		}
		return report.WriteJSON(w, reports)
	}
	if len(reports) > 0 {
		report.WriteTable(w, reports, showText)
	}
	return nil
}

// inputFailed prints why input produced no report.
func inputFailed(cmd *cobra.Command, input string, err error) {
	msg := err.Error()
	if errors.Is(err, profile.ErrConfigurationMissing) {
		msg += " (set RAPIDAPI_KEY and RAPIDAPI_HOST)"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", input, msg)
}
