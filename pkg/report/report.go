// Package report renders scored profiles for people: tables, a per-label
// summary with text bars, or JSON.
package report

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/detector"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/score"
)

// barWidth is the length of the longest summary bar.
const barWidth = 30

// Summary counts scored reports by label.
type Summary struct {
	Total      int `json:"total"`
	Suspicious int `json:"suspicious"`
	Normal     int `json:"normal"`
	Skipped    int `json:"skipped"` // rows that could not be scored
}

// Summarize counts reports by label. skipped is the number of inputs that
// produced no report.
func Summarize(reports []detector.Report, skipped int) Summary {
	s := Summary{Total: len(reports), Skipped: skipped}
	for _, r := range reports {
		if r.Label == score.LabelSuspicious {
			s.Suspicious++
		} else {
			s.Normal++
		}
	}
	return s
}

// Count returns the number of reports with label l.
func (s Summary) Count(l score.Label) int {
	switch l {
	case score.LabelSuspicious:
		return s.Suspicious
	case score.LabelNormal:
		return s.Normal
	default:
		return 0
	}
}

// WriteTable renders one row per report. Text extracted from screenshots
// is included when showText is set.
func WriteTable(w io.Writer, reports []detector.Report, showText bool) {
	t := newTable(w)

	header := table.Row{"Row", "Username", "Score", "Label", "Reasons"}
	withWarning := false
	for _, r := range reports {
		if r.Warning != "" {
			withWarning = true
			break
		}
	}
	if withWarning {
		header = append(header, "Warning")
	}
	if showText {
		header = append(header, "Text")
	}
	t.AppendHeader(header)

	for i, r := range reports {
		row := r.Row
		if row == 0 {
			row = i + 1
		}
		name := r.Username
		if name == "" {
			name = r.Source
		}
		reasons := "-"
		if len(r.Reasons) > 0 {
			reasons = strings.Join(r.Reasons, "\n")
		}
		line := table.Row{row, name, r.Score, string(r.Label), reasons}
		if withWarning {
			line = append(line, r.Warning)
		}
		if showText {
			line = append(line, strings.TrimSpace(r.Text))
		}
		t.AppendRow(line)
	}
	t.Render()
}

// WriteErrors renders the rows that could not be scored.
func WriteErrors(w io.Writer, errs []*profile.RecordError) {
	if len(errs) == 0 {
		return
	}
	t := newTable(w)
	t.SetTitle("Skipped rows")
	t.AppendHeader(table.Row{"Row", "Problem"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.Row, problem(e)})
	}
	t.Render()
}

func problem(e *profile.RecordError) string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// WriteSummary renders the counts by label with a text bar for each.
func WriteSummary(w io.Writer, s Summary) {
	t := newTable(w)
	t.SetTitle("Summary")
	t.AppendHeader(table.Row{"Label", "Count", ""})

	most := max(s.Suspicious, s.Normal)
	for _, l := range []score.Label{score.LabelSuspicious, score.LabelNormal} {
		n := s.Count(l)
		t.AppendRow(table.Row{string(l), n, bar(n, most)})
	}
	t.AppendFooter(table.Row{"Total", s.Total, skippedNote(s.Skipped)})
	t.Render()
}

// bar scales n against the largest count.
func bar(n, most int) string {
	if n <= 0 || most <= 0 {
		return ""
	}
	width := n * barWidth / most
	if width == 0 {
		width = 1
	}
	return strings.Repeat("█", width)
}

func skippedNote(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n) + " skipped"
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}
