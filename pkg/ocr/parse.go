// Package ocr turns profile screenshots into coarse profile signals.
//
// Extraction is deliberately approximate: screenshots rarely expose every field
// of a profile, so Parse produces Signals rather than a profile.Profile, and a
// count that could not be read is left nil instead of zero.
package ocr

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minBioTextLen is the trimmed text length at which a bio is assumed present
// even without the word "bio" appearing in the text.
const minBioTextLen = 30

// Digits and spaces are matched across scripts, so "٣ followers" reads as 3.
const (
	digits = `(\p{Nd}+)`
	spaces = `[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]*`
)

var (
	fewPostsPattern  = regexp.MustCompile(`0 posts|1 post`)
	followersPattern = regexp.MustCompile(digits + spaces + `followers`)
	followingPattern = regexp.MustCompile(digits + spaces + `following`)
)

// Signals are the facts Parse could read from screenshot text.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Signals struct {
	FewPosts   bool   `json:"few_posts"`
	Followers  *int   `json:"followers,omitempty"` // nil when not found
	Following  *int   `json:"following,omitempty"` // nil when not found
	BioPresent bool   `json:"bio_present"`
	RawText    string `json:"raw_text"`
}

// Parse extracts Signals from raw OCR output.
func Parse(text string) Signals {
	lower := strings.ToLower(text)
	return Signals{
		FewPosts:   fewPostsPattern.MatchString(lower),
		Followers:  findCount(followersPattern, lower),
		Following:  findCount(followingPattern, lower),
		BioPresent: strings.Contains(lower, "bio") || utf8.RuneCountInString(strings.TrimSpace(text)) >= minBioTextLen,
		RawText:    text,
	}
}

// findCount returns the number captured by the first match of re, or nil.
// Counts too large for an int are clamped to math.MaxInt.
func findCount(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n := 0
	for _, r := range m[1] {
		d := digitValue(r)
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
			break
		}
		n = n*10 + d
	}
	return &n
}

// digitValue returns the value of a decimal digit rune from any script.
// Decimal digits are encoded as contiguous runs of ten starting at zero.
func digitValue(r rune) int {
	zero := r
	for zero > 0 && unicode.IsDigit(zero-1) {
		zero--
	}
	return int(r-zero) % 10
}
