// Package domains normalizes noisy domain strings and collapses them to
// organizational root domains for dedup keys and analytics grouping.
package domains

import (
	"net/url"
	"regexp"
	"strings"
)

// Other is returned whenever a value cannot be reduced to a valid domain.
const Other = "other"

// publicSuffixMulti lists multi-label public suffixes where the
// organizational root keeps one extra label (mail.acme.co.id -> acme.co.id).
var publicSuffixMulti = []string{
	// Indonesia
	"co.id", "go.id", "ac.id", "or.id", "web.id", "my.id", "sch.id",
	// UK
	"co.uk", "gov.uk", "ac.uk", "org.uk",
	// Australia
	"com.au", "net.au", "gov.au",
	// Japan
	"co.jp",
}

// invalidRoots are pure TLDs that must not surface as organizational roots.
var invalidRoots = map[string]bool{
	"net.id": true, "id": true,
	"com": true, "net": true, "org": true, "edu": true, "gov": true, "mil": true,
	"co": true, "uk": true, "au": true, "jp": true, "de": true, "fr": true, "it": true, "es": true,
}

// allowExactRoots are multi-label suffixes that are nevertheless valid roots
// when they appear alone. Registrations directly under these are real
// organizations, so they are exempt from the suffix-only rejection.
var allowExactRoots = map[string]bool{
	"desa.id": true,
	"biz.id":  true,
}

var (
	// domainRe validates a normalized domain: one or more DNS labels
	// followed by an alphabetic TLD of 2-24 characters.
	domainRe = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}$`)

	// candidateRe scans arbitrary text for domain-like substrings.
	candidateRe = regexp.MustCompile(`(?:[a-z0-9-]+\.)+[a-z]{2,24}`)
)

// Normalize reduces a potentially noisy domain/URL string to a clean,
// lowercase domain. Protocols, paths, ports and colon-delimited noise
// tokens are stripped, as is a leading "www.". Returns Other when no valid
// domain can be recovered.
func Normalize(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return Other
	}

	if strings.Contains(s, "://") {
		if parsed, err := url.Parse(s); err == nil {
			if parsed.Host != "" {
				s = parsed.Host
			} else if parsed.Path != "" {
				s = parsed.Path
			}
		}
	}

	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}

	if s == "http" || s == "https" {
		return Other
	}

	s = strings.TrimPrefix(s, "www.")

	if domainRe.MatchString(s) {
		return s
	}

	// Salvage: longest domain-like substring from the cleaned string,
	// then from the original value.
	if cand := findCandidate(s); cand != "" && domainRe.MatchString(cand) {
		return cand
	}
	if cand := findCandidate(strings.ToLower(strings.TrimSpace(value))); cand != "" && domainRe.MatchString(cand) {
		return cand
	}

	return Other
}

// Root collapses a domain to its organizational root. For domains under a
// multi-label public suffix the root keeps one preceding label; otherwise
// the root is the last two labels. Pure TLDs are rejected as Other unless
// explicitly allow-listed.
func Root(domain string) string {
	norm := Normalize(domain)
	if norm == Other {
		return Other
	}

	if allowExactRoots[norm] {
		return norm
	}

	parts := strings.Split(norm, ".")

	for _, ps := range publicSuffixMulti {
		if norm == ps || strings.HasSuffix(norm, "."+ps) {
			n := strings.Count(ps, ".") + 1
			if len(parts) <= n {
				// Bare multi-label suffix with no preceding label.
				return Other
			}
			root := strings.Join(parts[len(parts)-n-1:], ".")
			if invalidRoots[root] && !allowExactRoots[root] {
				return Other
			}
			return root
		}
	}

	if len(parts) >= 2 {
		root := strings.Join(parts[len(parts)-2:], ".")
		if invalidRoots[root] && !allowExactRoots[root] {
			return Other
		}
		return root
	}

	return Other
}

// BestFrom picks the best normalized domain from a record's fields, trying
// the domain field, then the URL host, then the username's email domain,
// then a salvage scan over the concatenation of all three.
func BestFrom(domain, rawURL, username string) string {
	if nd := Normalize(domain); nd != Other {
		return nd
	}

	if rawURL != "" {
		if nu := Normalize(rawURL); nu != Other {
			return nu
		}
		if cand := findCandidate(strings.ToLower(rawURL)); cand != "" && domainRe.MatchString(cand) {
			return cand
		}
	}

	if at := strings.Index(username, "@"); at >= 0 {
		emailDomain := username[at+1:]
		if ne := Normalize(emailDomain); ne != Other {
			return ne
		}
		if cand := findCandidate(strings.ToLower(emailDomain)); cand != "" && domainRe.MatchString(cand) {
			return cand
		}
	}

	combined := strings.ToLower(domain + " " + rawURL + " " + username)
	if cand := findCandidate(combined); cand != "" && domainRe.MatchString(cand) {
		return cand
	}

	return Other
}

// findCandidate returns the longest domain-like substring of text, with any
// leading "www." removed. Returns "" when nothing matches.
func findCandidate(text string) string {
	if text == "" {
		return ""
	}
	matches := candidateRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	best := ""
	for _, m := range matches {
		if len(m) > len(best) {
			best = m
		}
	}
	return strings.TrimPrefix(best, "www.")
}
