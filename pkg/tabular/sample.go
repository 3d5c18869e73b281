package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
)

// SampleProfiles returns the reference table: a mix of normal and suspicious accounts.
func SampleProfiles() []profile.Profile {
	return []profile.Profile{
		{Username: "john_doe", Followers: 150, Following: 100, Posts: 50, Bio: "Love photography and travel.", ProfilePic: "yes"},
		{Username: "spam_account123", Followers: 5, Following: 600, Posts: 1, Bio: "", ProfilePic: "no"},
		{Username: "coolgirl99", Followers: 2000, Following: 500, Posts: 120, Bio: "Fashion | Lifestyle | Blogger", ProfilePic: "yes"},
		{Username: "fakebot01", Followers: 12, Following: 2000, Posts: 0, Bio: "Click this link to win $$$", ProfilePic: "no"},
		{Username: "nature_lover", Followers: 340, Following: 150, Posts: 35, Bio: "Sharing my hiking adventures.", ProfilePic: "yes"},
	}
}

// WriteCSV writes profiles as CSV with a header row.
func WriteCSV(w io.Writer, profiles []profile.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range profiles {
		rec := []string{
			p.Username,
			strconv.Itoa(p.Followers),
			strconv.Itoa(p.Following),
			strconv.Itoa(p.Posts),
			p.Bio,
			p.ProfilePic,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", p.Username, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write writes profiles in the given format.
func Write(w io.Writer, format Format, profiles []profile.Profile) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, profiles)
	case FormatXLSX:
		return WriteXLSX(w, profiles)
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}
}

// WriteSample writes SampleProfiles in the given format.
func WriteSample(w io.Writer, format Format) error {
	return Write(w, format, SampleProfiles())
}
