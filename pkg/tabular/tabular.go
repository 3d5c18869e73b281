// Package tabular reads batches of profiles from CSV files and XLSX workbooks.
//
// Rows are normalized independently: a row with a missing or malformed field
// is reported as a *profile.RecordError and the remaining rows still load.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
)

// Columns lists the required header names, in export order.
var Columns = []string{
	profile.FieldUsername,
	profile.FieldFollowers,
	profile.FieldFollowing,
	profile.FieldPosts,
	profile.FieldBio,
	profile.FieldProfilePic,
}

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("table has no header row")

// Format identifies a tabular file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name such as "csv" or "XLSX".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported table format %q (want csv or xlsx)", s)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("cannot infer table format of %q: no extension", path)
	}
	return ParseFormat(ext)
}

// Record is a normalized row.
type Record struct {
	Profile profile.Profile
	Row     int // 1-based data row, header excluded
}

// Batch is the outcome of reading a table.
type Batch struct {
	Records []Record
	Errors  []*profile.RecordError
}

// Rows returns the number of data rows read, valid or not.
func (b *Batch) Rows() int { return len(b.Records) + len(b.Errors) }

// Read parses a table in the given format.
func Read(r io.Reader, format Format) (*Batch, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported table format %q", format)
	}
}

// ReadCSV parses comma-separated profiles with a header row.
func ReadCSV(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // short rows are reported per row, not as a parse failure
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return parseRows(rows)
}

// parseRows normalizes a header row followed by data rows.
func parseRows(rows [][]string) (*Batch, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	index := columnIndex(rows[0])
	var headerMissing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			headerMissing = append(headerMissing, col)
		}
	}

	b := &Batch{}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		n := i + 1
		p, recErr := parseRow(row, index, headerMissing)
		if recErr != nil {
			recErr.Row = n
			b.Errors = append(b.Errors, recErr)
			continue
		}
		b.Records = append(b.Records, Record{Row: n, Profile: p})
	}
	return b, nil
}

// columnIndex maps normalized header names to their positions.
// A UTF-8 byte order mark on the first header cell is ignored.
func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return index
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, index map[string]int, headerMissing []string) (profile.Profile, *profile.RecordError) {
	missing := append([]string(nil), headerMissing...)
	var invalid []string

	cell := func(col string) (string, bool) {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	count := func(col string) int {
		raw, ok := cell(col)
		if !ok {
			if !slices.Contains(headerMissing, col) {
				missing = append(missing, col)
			}
			return 0
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			missing = append(missing, col)
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			invalid = append(invalid, col)
			return 0
		}
		return n
	}

	var p profile.Profile
	if v, ok := cell(profile.FieldUsername); ok {
		p.Username = strings.TrimSpace(v)
	} else if !slices.Contains(headerMissing, profile.FieldUsername) {
		missing = append(missing, profile.FieldUsername)
	}
	p.Followers = count(profile.FieldFollowers)
	p.Following = count(profile.FieldFollowing)
	p.Posts = count(profile.FieldPosts)

	if v, ok := cell(profile.FieldBio); ok {
		p.Bio = v
	} else if !slices.Contains(headerMissing, profile.FieldBio) {
		missing = append(missing, profile.FieldBio)
	}

	if v, ok := cell(profile.FieldProfilePic); ok {
		switch {
		case strings.TrimSpace(v) == "":
			missing = append(missing, profile.FieldProfilePic)
		case !profile.ValidPic(v):
			invalid = append(invalid, profile.FieldProfilePic)
		default:
			p.ProfilePic = strings.ToLower(strings.TrimSpace(v))
		}
	} else if !slices.Contains(headerMissing, profile.FieldProfilePic) {
		missing = append(missing, profile.FieldProfilePic)
	}

	if len(missing) > 0 || len(invalid) > 0 {
		return profile.Profile{}, &profile.RecordError{Missing: missing, Invalid: invalid}
	}
	return p, nil
}
