// Package score rates how likely a profile is to be fake.
//
// Both scorers are pure: each rule is evaluated independently, in a fixed
// order, and appends its reason only when it fires.
package score

import (
	"strings"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/ocr"
	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
)

// SuspiciousThreshold is the lowest score classified as suspicious.
const SuspiciousThreshold = 4

// Label is the binary classification shown for a scored profile.
type Label string

// Classification labels.
const (
	LabelSuspicious Label = "Suspicious"
	LabelNormal     Label = "Normal"
)

// Classify maps a score to its label.
func Classify(score int) Label {
	if score >= SuspiciousThreshold {
		return LabelSuspicious
	}
	return LabelNormal
}

// Reasons reported by Profile.
const (
	ReasonRatio     = "Suspicious follower/following ratio"
	ReasonFewPosts  = "Very few posts"
	ReasonNoPicture = "No profile picture"
	ReasonShortBio  = "Empty or too short bio"
)

// Reasons reported by Signals.
const (
	ReasonFewPostsDetected = "Very few posts detected"
	ReasonFewFollowers     = "Very few followers"
	ReasonFollowsMany      = "Follows many accounts but has few followers"
	ReasonNoBio            = "Bio seems empty or missing"
)

// Profile rule parameters.
const (
	minFollowerRatio = 0.1
	minPosts         = 5
	minBioLen        = 10
)

// Screenshot rule parameters.
const (
	minFollowers = 50
	maxFollowing = 1000
)

// Rule weights.
const (
	strongSignal = 2
	weakSignal   = 1
)

// Result is a score and the reasons behind it, in rule order.
type Result struct {
	Reasons []string `json:"reasons"`
	Score   int      `json:"score"`
}

// Label classifies the result.
func (r Result) Label() Label { return Classify(r.Score) }

// Suspicious reports whether the result meets SuspiciousThreshold.
func (r Result) Suspicious() bool { return r.Score >= SuspiciousThreshold }

func (r *Result) add(points int, reason string) {
	r.Score += points
	r.Reasons = append(r.Reasons, reason)
}

// Profile scores a normalized profile. The result ranges from 0 to 7.
// An account following nobody never trips the ratio rule, however few followers it has.
func Profile(p profile.Profile) Result {
	r := Result{Reasons: []string{}}

	if p.Following > 0 {
		ratio := float64(p.Followers) / float64(p.Following)
		if ratio < minFollowerRatio {
			r.add(strongSignal, ReasonRatio)
		}
	}

	if p.Posts < minPosts {
		r.add(strongSignal, ReasonFewPosts)
	}

	if !p.HasPicture() {
		r.add(strongSignal, ReasonNoPicture)
	}

	if p.Bio == "" || utf8.RuneCountInString(strings.TrimSpace(p.Bio)) < minBioLen {
		r.add(weakSignal, ReasonShortBio)
	}

	return r
}

// Signals scores what could be read from a screenshot. The result ranges from 0 to 7.
// The following-count rule needs both counts: an unread follower count never fires it.
func Signals(s ocr.Signals) Result {
	r := Result{Reasons: []string{}}

	if s.FewPosts {
		r.add(strongSignal, ReasonFewPostsDetected)
	}

	fewFollowers := s.Followers != nil && *s.Followers < minFollowers
	if fewFollowers {
		r.add(strongSignal, ReasonFewFollowers)
	}

	if s.Following != nil && *s.Following > maxFollowing && fewFollowers {
		r.add(strongSignal, ReasonFollowsMany)
	}

	if !s.BioPresent {
		r.add(weakSignal, ReasonNoBio)
	}

	return r
}
