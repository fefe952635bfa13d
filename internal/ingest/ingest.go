// Package ingest extracts candidate credential lines from local files,
// including compressed containers (zip, tar, gzip, 7z, rar).
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/north-cloud/leakscan/internal/logger"
)

// textExts is the allow-list of member extensions read as text. Extensionless
// files are included.
var textExts = map[string]bool{
	"": true, ".txt": true, ".log": true, ".csv": true, ".json": true,
	".xml": true, ".sql": true, ".conf": true, ".ini": true,
}

// binaryExts are skipped without attempting a read. Nested archives are
// deliberately not recursed into.
var binaryExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".bmp": true, ".ico": true, ".tiff": true, ".tif": true, ".avif": true,
	".zip": true, ".gz": true, ".tar": true, ".tgz": true, ".rar": true, ".7z": true,
}

// Reader extracts and reads credential lines from files.
type Reader struct {
	logger logger.Interface
}

// NewReader creates a file reader.
func NewReader(log logger.Interface) *Reader {
	return &Reader{logger: log}
}

// ReadLines extracts filePath (decompressing containers as needed) and
// returns candidate lines from all text members, deduplicated while
// preserving first-occurrence order. When query is non-empty only lines
// containing it (case-insensitive) are returned. Extraction failures fail
// closed: the whole ingestion returns an error and no lines.
func (r *Reader) ReadLines(filePath, query string) ([]string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "leakscan-extract-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	files, err := extractContainer(filePath, tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(filePath), err)
	}

	var all []string
	for _, f := range files {
		if !isTextCandidate(f) {
			r.logger.Debug("skipping non-text member", "file", filepath.Base(f))
			continue
		}

		lines, readErr := readTextLines(f, query)
		if readErr != nil {
			// Undecodable members are skipped, not fatal.
			r.logger.Warn("skipping unreadable member",
				"file", filepath.Base(f), "error", readErr)
			continue
		}
		all = append(all, lines...)
	}

	unique := dedupPreservingOrder(all)
	r.logger.Info("file ingestion complete",
		"file", filepath.Base(filePath),
		"members", len(files),
		"lines", len(unique),
		"duplicates_removed", len(all)-len(unique))

	return unique, nil
}

// isTextCandidate classifies a member by extension.
func isTextCandidate(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return textExts[ext] && !binaryExts[ext]
}

// readTextLines reads a file as UTF-8, falling back to ASCII. Files that
// decode as neither are rejected rather than read lossily. When query is
// set, only matching lines are kept (trimmed); otherwise all non-empty
// trimmed lines are returned.
func readTextLines(path, query string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if !utf8.Valid(data) && !isASCII(data) {
		return nil, fmt.Errorf("file is not valid utf-8 or ascii text")
	}

	queryLower := strings.ToLower(query)
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if query != "" {
			if strings.Contains(strings.ToLower(line), queryLower) {
				lines = append(lines, line)
			}
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return lines, nil
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b > 0x7f {
			return false
		}
	}
	return true
}

func dedupPreservingOrder(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
