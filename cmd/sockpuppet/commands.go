package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/detector"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/report"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/tabular"
)

// rowError is the JSON form of a skipped row.
type rowError struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
	Row     int      `json:"row"`
}

type batchOutput struct {
	Reports []detector.Report `json:"reports"`
	Errors  []rowError        `json:"errors"`
	Summary report.Summary    `json:"summary"`
}

func newBatchCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Score every row of a CSV or XLSX table (\"-\" reads CSV from stdin)",
		Long: "Score every row of a table with the columns " +
			"username, followers, following, posts, bio_text, profile_pic.\n" +
			"Malformed rows are skipped and listed; the other rows are still scored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := resolveFormat(format, path, tabular.FormatCSV)
			if err != nil {
				return err
			}

			in, closeIn, err := openInput(cmd, path)
			if err != nil {
				return err
			}
			defer closeIn()

			d := detector.New(detector.WithLogger(a.logger))
			res, err := d.Batch(cmd.Context(), in, f)
			if err != nil {
				return err
			}
			summary := report.Summarize(res.Reports, len(res.Errors))

			out := cmd.OutOrStdout()
			if a.jsonOut {
				o := batchOutput{Reports: res.Reports, Errors: []rowError{}, Summary: summary}
				if o.Reports == nil {
					o.Reports = []detector.Report{}
				}
				for _, e := range res.Errors {
					o.Errors = append(o.Errors, rowError{Row: e.Row, Missing: e.Missing, Invalid: e.Invalid, Error: e.Error()})
				}
				if err := report.WriteJSON(out, o); err != nil {
					return err
				}
			} else {
				if len(res.Reports) > 0 {
					report.WriteTable(out, res.Reports, false)
				}
				report.WriteErrors(out, res.Errors)
				report.WriteSummary(out, summary)
			}

			if len(res.Errors) > 0 {
				return errIncomplete
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: csv or xlsx (default from the file extension)")
	return cmd
}

func newManualCmd(a *app) *cobra.Command {
	var p profile.Profile
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Score a profile entered by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := detector.New(detector.WithLogger(a.logger)).Manual(p)
			if err != nil {
				return err
			}
			return a.writeReports(cmd.OutOrStdout(), []detector.Report{rep}, false)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&p.Username, "username", "", "account name, shown but not scored")
	flags.IntVar(&p.Followers, "followers", 0, "number of followers")
	flags.IntVar(&p.Following, "following", 0, "number of accounts followed")
	flags.IntVar(&p.Posts, "posts", 0, "number of posts")
	flags.StringVar(&p.Bio, "bio", "", "biography text")
	flags.StringVar(&p.ProfilePic, "profile-pic", profile.PicYes, "whether the profile has a picture: yes or no")
	return cmd
}

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup USERNAME|LINK...",
		Short: "Fetch profiles from the lookup service and score them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := a.openDetector(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var reports []detector.Report
			failed := false
			for _, input := range args {
				rep, err := d.Lookup(cmd.Context(), input)
				if err != nil {
					a.logger.Debug("lookup failed", "input", input, "error", err)
					inputFailed(cmd, input, err)
					failed = true
					continue
				}
				reports = append(reports, rep)
			}

			if err := a.writeReports(cmd.OutOrStdout(), reports, false); err != nil {
				return err
			}
			if failed {
				return errIncomplete
			}
			return nil
		},
	}
}

func newScreenshotCmd(a *app) *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "screenshot IMAGE...",
		Short: "Read profile screenshots with OCR and score them (\"-\" reads stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, closeFn, err := a.openDetector(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var reports []detector.Report
			failed := false
			for _, path := range args {
				rep, err := screenshot(cmd, d, path)
				if err != nil {
					inputFailed(cmd, path, err)
					failed = true
					continue
				}
				reports = append(reports, rep)
			}

			if err := a.writeReports(cmd.OutOrStdout(), reports, showText); err != nil {
				return err
			}
			if failed {
				return errIncomplete
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showText, "show-text", false, "include the extracted text in the table")
	return cmd
}

func screenshot(cmd *cobra.Command, d *detector.Detector, path string) (detector.Report, error) {
	in, closeIn, err := openInput(cmd, path)
	if err != nil {
		return detector.Report{}, err
	}
	defer closeIn()

	rep, err := d.Screenshot(cmd.Context(), in)
	if err != nil {
		return detector.Report{}, err
	}
	rep.Source = path
	return rep, nil
}

func newSampleCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the sample profile table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := resolveFormat(format, output, tabular.FormatCSV)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := tabular.WriteSample(&buf, f); err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o600); err != nil {
				return fmt.Errorf("write sample: %w", err)
			}
			a.logger.Info("sample written", "path", output, "format", f)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv or xlsx (default from the output extension, else csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// resolveFormat prefers an explicit --format, then the file extension, then def.
func resolveFormat(flag, path string, def tabular.Format) (tabular.Format, error) {
	if flag != "" {
		return tabular.ParseFormat(flag)
	}
	if path == "" || path == "-" {
		return def, nil
	}
	return tabular.FormatFromPath(path)
}

// openInput opens path, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // read-only
}
