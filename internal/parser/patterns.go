package parser

import (
	"regexp"
	"strings"

	"github.com/north-cloud/leakscan/internal/domain"
)

// The cascade below is an ordered list of heuristics, not a grammar.
// Patterns overlap; precedence is the contract. A line is matched by the
// first pattern that accepts it, even if a later pattern would also match.

var (
	// leadingIndexRe strips a numeric export-index prefix from a URL token;
	// leadingIndexPrefixRe strips the same prefix from a whole line, where
	// the semicolon is required to avoid eating bare numeric fields.
	leadingIndexRe       = regexp.MustCompile(`^\d+;?`)
	leadingIndexPrefixRe = regexp.MustCompile(`^\d+;`)

	pattern1Re  = regexp.MustCompile(`^(https?://\S+)\s+([^\s:]+@[^\s:]+):(.+)$`)
	pattern2Re  = regexp.MustCompile(`^(https?://\S+)\s+([^\s:@]+):(.+)$`)
	pattern3Re  = regexp.MustCompile(`^(https?://\S+)\s*:\s*([^:]+?)\s*:\s*(.+)$`)
	pattern4Re  = regexp.MustCompile(`^([^\s:]+)\s*:\s*([^:]+?)\s*:\s*(.+)$`)
	pattern5Re  = regexp.MustCompile(`^([^:\s]+):([^:]+):(.+)$`)
	pattern10Re = regexp.MustCompile(`^([^@:]+):([^@]+)@([^@\s]+)$`)
	pattern11Re = regexp.MustCompile(`^\[([^\]]+)\]\s*(.+)$`)
	pattern13EmailRe = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}):(\S+)`)
	pattern13URLRe   = regexp.MustCompile(`https?://\S+`)
	pattern14Re = regexp.MustCompile(`^(\S+)\s+([^\s:]+@[^\s:]+):(.+)$`)
	pattern15Re = regexp.MustCompile(`^(https?://\S+)\s+([^\s:]+@[^\s:]+)\s+:$`)
	pattern16Re = regexp.MustCompile(`^(https?://\S+)\s+([^\s:]+@[^\s:]+)\s+([^:\s]+):?$`)
	pattern17Re = regexp.MustCompile(`^[^:]*:([^:]+@[^:]+):(\S+)\s.*$`)
	pattern18Re = regexp.MustCompile(`^([a-zA-Z0-9.-]+(?:/\S*)?)\s+([^\s:]+@[^\s:]+):(.+)$`)
	pattern19Re = regexp.MustCompile(`^(\S+)\s+([^\s@]+)\s+([^\s:]+@[^\s:]+)$`)
	pattern20Re = regexp.MustCompile(`^(\S+)\s+([^\s:]+@[^\s:]+)\s+(\S+)$`)
)

// NormalizeURL converts a bare domain-like token into a URL, prefixing
// https:// unless a scheme is already present. Tokens that look like
// non-domain noise return "".
func NormalizeURL(part string) string {
	if strings.HasPrefix(part, "company/") || strings.Contains(part, "Company,") {
		return ""
	}

	part = strings.TrimSpace(leadingIndexRe.ReplaceAllString(part, ""))

	if strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://") {
		return part
	}

	if strings.ContainsAny(part, "./") {
		return "https://" + part
	}

	return ""
}

// matcher is one rule of the cascade: it either extracts a credential from
// the line or declines. A matcher may also veto the rest of the cascade by
// returning reject=true (used for recognizably incomplete lines).
type matcher struct {
	id    int
	apply func(line string) (cred *domain.ParsedCredential, reject bool)
}

func triple(id int, url, username, password, line string) (*domain.ParsedCredential, bool) {
	return &domain.ParsedCredential{
		URL:       strings.TrimSpace(url),
		Username:  strings.TrimSpace(username),
		Password:  strings.TrimSpace(password),
		Original:  line,
		PatternID: id,
	}, false
}

// splitPattern handles the delimiter-based layouts (patterns 6-9): the
// password keeps any embedded delimiters by taking everything after the
// second occurrence.
func splitPattern(id int, sep string, minCount int) matcher {
	return matcher{id: id, apply: func(line string) (*domain.ParsedCredential, bool) {
		if strings.Count(line, sep) < minCount {
			return nil, false
		}
		parts := strings.Split(line, sep)
		if len(parts) < 3 {
			return nil, false
		}
		urlPart := strings.TrimSpace(parts[0])
		username := strings.TrimSpace(parts[1])
		password := strings.TrimSpace(strings.Join(parts[2:], sep))

		urlStr := urlPart
		if !strings.HasPrefix(urlPart, "http") {
			urlStr = NormalizeURL(urlPart)
		}
		if urlStr == "" || username == "" || password == "" {
			return nil, false
		}
		return triple(id, urlStr, username, password, line)
	}}
}

// cascade is the full ordered pattern list. IDs are stable telemetry tags.
var cascade = []matcher{
	// 1: URL email:password
	{1, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern1Re.FindStringSubmatch(line); m != nil {
			return triple(1, m[1], m[2], m[3], line)
		}
		return nil, false
	}},
	// 2: URL username:password (non-email)
	{2, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern2Re.FindStringSubmatch(line); m != nil {
			if !strings.HasPrefix(m[2], "http") && strings.Contains(m[1], ".") {
				return triple(2, m[1], m[2], m[3], line)
			}
		}
		return nil, false
	}},
	// 3: URL : username : password
	{3, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern3Re.FindStringSubmatch(line); m != nil {
			return triple(3, m[1], m[2], m[3], line)
		}
		return nil, false
	}},
	// 4: domain : username : password (spaced colons)
	{4, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern4Re.FindStringSubmatch(line); m != nil {
			if urlStr := NormalizeURL(strings.TrimSpace(m[1])); urlStr != "" {
				return triple(4, urlStr, m[2], m[3], line)
			}
		}
		return nil, false
	}},
	// 5: domain:username:password
	{5, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern5Re.FindStringSubmatch(line); m != nil {
			if urlStr := NormalizeURL(strings.TrimSpace(m[1])); urlStr != "" {
				return triple(5, urlStr, m[2], m[3], line)
			}
		}
		return nil, false
	}},
	splitPattern(6, "|", 2),
	splitPattern(7, ";", 2),
	splitPattern(8, "\t", 1),
	splitPattern(9, ",", 2),
	// 10: username:password@domain
	{10, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern10Re.FindStringSubmatch(line); m != nil {
			urlStr := NormalizeURL(strings.TrimSpace(m[3]))
			username := strings.TrimSpace(m[1])
			password := strings.TrimSpace(m[2])
			if urlStr != "" && username != "" && password != "" {
				return triple(10, urlStr, username, password, line)
			}
		}
		return nil, false
	}},
	// 11: [url] username:password
	{11, func(line string) (*domain.ParsedCredential, bool) {
		m := pattern11Re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		urlPart := strings.TrimSpace(m[1])
		credPart := strings.TrimSpace(m[2])
		colon := strings.Index(credPart, ":")
		if colon < 0 {
			return nil, false
		}
		username := strings.TrimSpace(credPart[:colon])
		password := strings.TrimSpace(credPart[colon+1:])

		urlStr := urlPart
		if !strings.HasPrefix(urlPart, "http") {
			urlStr = NormalizeURL(urlPart)
		}
		if urlStr == "" || username == "" || password == "" {
			return nil, false
		}
		return triple(11, urlStr, username, password, line)
	}},
	// 12: colon-split where the first token is a URL, optionally followed
	// by a numeric port token that belongs to the URL.
	{12, func(line string) (*domain.ParsedCredential, bool) {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			return nil, false
		}
		first := strings.TrimSpace(parts[0])
		if !strings.HasPrefix(first, "http") {
			return nil, false
		}
		urlParts := []string{first}
		credStart := 1
		if isDigits(strings.TrimSpace(parts[1])) {
			urlParts = append(urlParts, parts[1])
			credStart = 2
		}
		if credStart >= len(parts)-1 {
			return nil, false
		}
		username := strings.TrimSpace(parts[credStart])
		password := strings.TrimSpace(strings.Join(parts[credStart+1:], ":"))
		if username == "" || password == "" {
			return nil, false
		}
		return triple(12, strings.Join(urlParts, ":"), username, password, line)
	}},
	// 13: email:password anywhere in the line, paired with a URL anywhere.
	{13, func(line string) (*domain.ParsedCredential, bool) {
		em := pattern13EmailRe.FindStringSubmatch(line)
		if em == nil {
			return nil, false
		}
		if urlStr := pattern13URLRe.FindString(line); urlStr != "" {
			return triple(13, urlStr, em[1], em[2], line)
		}
		return nil, false
	}},
	// 14: domain/URL email:password with missing scheme
	{14, func(line string) (*domain.ParsedCredential, bool) {
		m := pattern14Re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		urlPart := m[1]
		urlStr := urlPart
		if !strings.HasPrefix(urlPart, "http") {
			if strings.ContainsAny(urlPart, "/.") {
				urlStr = "https://" + urlPart
			} else {
				urlStr = NormalizeURL(urlPart)
			}
		}
		if urlStr == "" {
			return nil, false
		}
		return triple(14, urlStr, m[2], m[3], line)
	}},
	// 15: URL email followed by a lone colon - incomplete, stop matching.
	{15, func(line string) (*domain.ParsedCredential, bool) {
		if pattern15Re.MatchString(line) {
			return nil, true
		}
		return nil, false
	}},
	// 16: URL email password, optional trailing colon
	{16, func(line string) (*domain.ParsedCredential, bool) {
		if m := pattern16Re.FindStringSubmatch(line); m != nil {
			return triple(16, m[1], m[2], m[3], line)
		}
		return nil, false
	}},
	// 17: arbitrary prefix : email : password ...
	{17, func(line string) (*domain.ParsedCredential, bool) {
		m := pattern17Re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		email := m[1]
		at := strings.Index(email, "@")
		if at < 0 {
			return nil, false
		}
		urlStr := NormalizeURL(email[at+1:])
		if urlStr == "" {
			return nil, false
		}
		return triple(17, urlStr, email, m[2], line)
	}},
	// 18: partial URL email:password
	{18, func(line string) (*domain.ParsedCredential, bool) {
		m := pattern18Re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		urlPart := m[1]
		var urlStr string
		switch {
		case strings.HasPrefix(urlPart, "http"):
			urlStr = urlPart
		case strings.Contains(urlPart, "."):
			urlStr = "https://" + urlPart
		default:
			return nil, false
		}
		return triple(18, urlStr, m[2], m[3], line)
	}},
	// 19: domain password email
	{19, func(line string) (*domain.ParsedCredential, bool) {
		m := pattern19Re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		urlStr := NormalizeURL(m[1])
		if urlStr == "" {
			return nil, false
		}
		return triple(19, urlStr, m[3], m[2], line)
	}},
	// 20: domain email password
	{20, func(line string) (*domain.ParsedCredential, bool) {
		m := pattern20Re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		if strings.HasPrefix(m[3], "http") {
			return nil, false
		}
		urlStr := NormalizeURL(m[1])
		if urlStr == "" {
			return nil, false
		}
		return triple(20, urlStr, m[2], m[3], line)
	}},
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
