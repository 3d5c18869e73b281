package profile

import "strings"

// socialDomains are the hosts whose links are reduced to a bare username.
var socialDomains = []string{
	"instagram.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"facebook.com",
	"threads.net",
	"threads.com",
}

// IsSocialLink reports whether input mentions a known social network domain.
func IsSocialLink(input string) bool {
	lower := strings.ToLower(input)
	for _, d := range socialDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// UsernameFromInput returns the username for a pasted profile link,
// or the trimmed input itself when it is not a known social link.
//
//	https://www.instagram.com/jane_doe/?hl=en -> jane_doe
//	https://www.tiktok.com/@jane_doe          -> jane_doe
//	jane_doe                                  -> jane_doe
func UsernameFromInput(input string) string {
	s := strings.TrimSpace(input)
	if !IsSocialLink(s) {
		return s
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimPrefix(s, "@")
}
