package parser_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/north-cloud/leakscan/internal/parser"
)

func TestParseLine_PatternPrecedence(t *testing.T) {
	t.Parallel()

	// Spec case: the URL+email:password layout must be claimed by the
	// first pattern, not by the later space-separated layouts.
	cred, ok := parser.ParseLine("http://x.com alice@x.com:secret")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if cred.PatternID != 1 {
		t.Fatalf("expected pattern 1, got %d", cred.PatternID)
	}
	if cred.URL != "http://x.com" || cred.Username != "alice@x.com" || cred.Password != "secret" {
		t.Fatalf("unexpected extraction: %+v", cred)
	}
}

func TestParseLine_Cascade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		line      string
		patternID int
		url       string
		username  string
		password  string
	}{
		{
			"url user:pass", "https://portal.acme.com admin:hunter2",
			2, "https://portal.acme.com", "admin", "hunter2",
		},
		{
			"url spaced colons", "https://x.com : bob : pass word",
			3, "https://x.com", "bob", "pass word",
		},
		{
			"bare domain colons", "admin.acme.com:admin:admin123",
			4, "https://admin.acme.com", "admin", "admin123",
		},
		{
			"pipe separated with embedded pipe", "shop.acme.co.id|bob|pw1|pw2",
			6, "https://shop.acme.co.id", "bob", "pw1|pw2",
		},
		{
			"semicolon separated", "acme.com;carol;s3cret;x",
			7, "https://acme.com", "carol", "s3cret;x",
		},
		{
			"tab separated", "acme.com\tdave\tpw\tmore",
			8, "https://acme.com", "dave", "pw\tmore",
		},
		{
			"comma separated", "acme.com,erin,top,secret",
			9, "https://acme.com", "erin", "top,secret",
		},
		{
			"reversed user:pass@domain", "alice:secret@acme.com",
			10, "https://acme.com", "alice", "secret",
		},
		{
			"bracketed url", "[https://x.com] admin:pw",
			11, "https://x.com", "admin", "pw",
		},
		{
			"email and url anywhere", "visit http://a.com contact bob@x.com:pw now",
			13, "http://a.com", "bob@x.com", "pw",
		},
		{
			"domain email:pass missing scheme", "portal.acme.com bob@acme.com:pw123",
			14, "https://portal.acme.com", "bob@acme.com", "pw123",
		},
		{
			"url email pass trailing colon", "http://x.com alice@x.com secret:",
			16, "http://x.com", "alice@x.com", "secret",
		},
		{
			"domain pass email", "acme.com pw123 bob@acme.com",
			19, "https://acme.com", "bob@acme.com", "pw123",
		},
		{
			"domain email pass", "acme.com bob@acme.com pw123",
			20, "https://acme.com", "bob@acme.com", "pw123",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cred, ok := parser.ParseLine(tc.line)
			if !ok {
				t.Fatalf("expected %q to parse", tc.line)
			}
			if cred.PatternID != tc.patternID {
				t.Errorf("pattern = %d, want %d", cred.PatternID, tc.patternID)
			}
			if cred.URL != tc.url || cred.Username != tc.username || cred.Password != tc.password {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					cred.URL, cred.Username, cred.Password, tc.url, tc.username, tc.password)
			}
		})
	}
}

func TestParseLine_Rejections(t *testing.T) {
	t.Parallel()

	lines := []string{
		"",
		"   ",
		"# commented out",
		"Acme Widgets, Public Company, 500 employees",
		"careers company/acme hiring",
		"E-Learning Providers directory",
		"no credentials here",
		"http://x.com alice@x.com :", // incomplete trailing colon
	}

	for _, line := range lines {
		if cred, ok := parser.ParseLine(line); ok {
			t.Errorf("expected %q to be rejected, got %+v", line, cred)
		}
	}
}

func TestParseLine_LeadingIndexPrefix(t *testing.T) {
	t.Parallel()

	cred, ok := parser.ParseLine("42;https://x.com bob:pw")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if cred.URL != "https://x.com" {
		t.Errorf("expected index prefix stripped, got url %q", cred.URL)
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://x.com", "https://x.com"},
		{"http://x.com/login", "http://x.com/login"},
		{"acme.com", "https://acme.com"},
		{"www.acme.com", "https://www.acme.com"},
		{"acme.com/path", "https://acme.com/path"},
		{"123;acme.com", "https://acme.com"},
		{"company/acme", ""},
		{"Acme Company, Inc", ""},
		{"noise", ""},
	}

	for _, tc := range cases {
		if got := parser.NormalizeURL(tc.in); got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSession_BatchDedup(t *testing.T) {
	t.Parallel()

	lines := []string{
		"https://x.com alice@x.com:secret",
		"https://x.com alice@x.com:secret", // same triple again
		"https://y.com bob:pw",
		"not parseable at all",
	}

	s := parser.NewSession()
	if err := s.ParseLines(lines, nil); err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}

	if got := len(s.Parsed()); got != 2 {
		t.Fatalf("expected 2 unique credentials, got %d", got)
	}
	if got := s.DuplicatesSkipped(); got != 1 {
		t.Errorf("expected 1 skipped duplicate, got %d", got)
	}
	if got := len(s.Unparsed()); got != 1 {
		t.Errorf("expected 1 unparsed line, got %d", got)
	}

	// Duplicate lines still count as pattern hits; only emission is
	// suppressed.
	hits := s.PatternHits()
	if hits[1] != 2 || hits[2] != 1 {
		t.Errorf("unexpected pattern hits: %v", hits)
	}

	// Line numbers are 1-based positions in the input batch.
	if s.Parsed()[0].LineNum != 1 || s.Parsed()[1].LineNum != 3 {
		t.Errorf("unexpected line numbers: %d, %d",
			s.Parsed()[0].LineNum, s.Parsed()[1].LineNum)
	}
}

func TestSession_StopPropagates(t *testing.T) {
	t.Parallel()

	stopErr := errors.New("stop requested")
	calls := 0
	stop := func(phase string) error {
		if phase != "parsing" {
			t.Errorf("expected phase 'parsing', got %q", phase)
		}
		calls++
		if calls == 2 {
			return stopErr
		}
		return nil
	}

	s := parser.NewSession()
	lines := []string{
		"https://x.com alice@x.com:one",
		"https://x.com alice@x.com:two",
		"https://x.com alice@x.com:three",
	}
	err := s.ParseLines(lines, stop)
	if !errors.Is(err, stopErr) {
		t.Fatalf("expected stop error to surface, got %v", err)
	}
	if got := len(s.Parsed()); got != 1 {
		t.Errorf("expected parse abandoned after 1 line, got %d", got)
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	lines := []string{
		"http://x.com alice@x.com:secret",
		"admin.acme.com:admin:admin123",
		"shop.acme.co.id|bob|pw1|pw2",
	}

	s := parser.NewSession()
	if err := s.ParseLines(lines, nil); err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	back, err := parser.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	want := s.Parsed()
	if len(back) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(back))
	}
	for i := range want {
		if back[i].URL != want[i].URL ||
			back[i].Username != want[i].Username ||
			back[i].Password != want[i].Password ||
			back[i].PatternID != want[i].PatternID {
			t.Errorf("record %d mismatch: got %+v, want %+v", i, back[i], want[i])
		}
	}
}

func TestSession_UnparsedCSV(t *testing.T) {
	t.Parallel()

	s := parser.NewSession()
	if err := s.ParseLines([]string{"???", "https://x.com a:b"}, nil); err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.WriteUnparsedCSV(&buf); err != nil {
		t.Fatalf("WriteUnparsedCSV() error = %v", err)
	}
	want := "Line_Number;Raw_Credential\n1;???\n"
	if buf.String() != want {
		t.Errorf("unexpected csv output:\n%q\nwant:\n%q", buf.String(), want)
	}
}
