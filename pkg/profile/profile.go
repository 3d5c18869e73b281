// Package profile defines the canonical social media profile record that every
// input channel is normalized into before scoring.
package profile

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by normalizers and fetchers.
var (
	ErrMalformedRecord       = errors.New("malformed record")
	ErrUpstream              = errors.New("upstream error")
	ErrConfigurationMissing  = errors.New("API not configured")
	ErrExtractionUnavailable = errors.New("text extraction unavailable")
)

// Profile picture values.
const (
	PicYes = "yes"
	PicNo  = "no"
)

// Field names, shared with the tabular column names.
const (
	FieldUsername   = "username"
	FieldFollowers  = "followers"
	FieldFollowing  = "following"
	FieldPosts      = "posts"
	FieldBio        = "bio_text"
	FieldProfilePic = "profile_pic"
)

// Profile is the normalized public stats of one account.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	Username   string `json:"username"`    // Display only, never scored
	Followers  int    `json:"followers"`   // Accounts following this one
	Following  int    `json:"following"`   // Accounts this one follows
	Posts      int    `json:"posts"`       // Published posts
	Bio        string `json:"bio_text"`    // Free-form biography, may be empty
	ProfilePic string `json:"profile_pic"` // "yes" or "no", any case
}

// HasPicture reports whether the profile declares a profile picture.
func (p Profile) HasPicture() bool {
	return !strings.EqualFold(strings.TrimSpace(p.ProfilePic), PicNo)
}

// Validate checks that every scored field is well-formed.
// The returned error is a *RecordError listing the offending fields.
func (p Profile) Validate() error {
	var invalid []string
	if p.Followers < 0 {
		invalid = append(invalid, FieldFollowers)
	}
	if p.Following < 0 {
		invalid = append(invalid, FieldFollowing)
	}
	if p.Posts < 0 {
		invalid = append(invalid, FieldPosts)
	}
	if !ValidPic(p.ProfilePic) {
		invalid = append(invalid, FieldProfilePic)
	}
	if len(invalid) == 0 {
		return nil
	}
	return &RecordError{Invalid: invalid}
}

// ValidPic reports whether s is an accepted profile picture value.
func ValidPic(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, PicYes) || strings.EqualFold(s, PicNo)
}

// RecordError describes a record that cannot be normalized.
// Row is the 1-based data row for tabular input and 0 otherwise.
type RecordError struct {
	Missing []string
	Invalid []string
	Row     int
}

func (e *RecordError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	b.WriteString(ErrMalformedRecord.Error())
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		fmt.Fprintf(&b, ": invalid %s", strings.Join(e.Invalid, ", "))
	}
	return b.String()
}

// Is makes errors.Is(err, ErrMalformedRecord) match.
func (*RecordError) Is(target error) bool { return target == ErrMalformedRecord }

// UpstreamError is returned when the lookup service answers with an error payload,
// a non-200 status, or cannot be reached.
type UpstreamError struct {
	Err        error  // Underlying transport error, if any
	Message    string // Error text from the service or a description of the failure
	StatusCode int    // HTTP status, 0 if none was received
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream error: HTTP %d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("upstream error: %s: %v", e.Message, e.Err)
	default:
		return "upstream error: " + e.Message
	}
}

// Is makes errors.Is(err, ErrUpstream) match.
func (*UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }
