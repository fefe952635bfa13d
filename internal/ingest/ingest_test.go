package ingest_test

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/north-cloud/leakscan/internal/ingest"
	"github.com/north-cloud/leakscan/internal/logger"
)

func newReader() *ingest.Reader {
	return ingest.NewReader(logger.NewNoOp())
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadLines_PlainFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "leak.txt", []byte("a.com:u:p\n\n  b.com:u:p  \na.com:u:p\n"))

	lines, err := newReader().ReadLines(path, "")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}

	want := []string{"a.com:u:p", "b.com:u:p"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("got %v, want %v", lines, want)
	}
}

func TestReadLines_QueryFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "leak.txt",
		[]byte("https://acme.com u:p\nhttps://other.net u:p\nACME.com x:y\n"))

	lines, err := newReader().ReadLines(path, "acme")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}

	want := []string{"https://acme.com u:p", "ACME.com x:y"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("got %v, want %v", lines, want)
	}
}

func TestReadLines_Zip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "dump.zip")

	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"creds.txt":  "a.com:u:p\nshared:line\n",
		"more.log":   "b.com:u:p\nshared:line\n",
		"banner.png": "\x89PNG binary stuff",
	} {
		w, createErr := zw.Create(name)
		if createErr != nil {
			t.Fatalf("failed to add member: %v", createErr)
		}
		if _, writeErr := w.Write([]byte(content)); writeErr != nil {
			t.Fatalf("failed to write member: %v", writeErr)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	f.Close()

	lines, err := newReader().ReadLines(zipPath, "")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}

	// Cross-member dedup preserves first occurrence; the png is skipped by
	// extension before any read attempt.
	seen := map[string]int{}
	for _, l := range lines {
		seen[l]++
	}
	if seen["shared:line"] != 1 {
		t.Errorf("expected cross-member dedup, got %v", lines)
	}
	if seen["a.com:u:p"] != 1 || seen["b.com:u:p"] != 1 {
		t.Errorf("missing member lines: %v", lines)
	}
	for _, l := range lines {
		if l == "\x89PNG binary stuff" {
			t.Error("binary member should have been skipped")
		}
	}
}

func TestReadLines_TarGz(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tarPath := filepath.Join(dir, "dump.tar.gz")

	f, err := os.Create(tarPath)
	if err != nil {
		t.Fatalf("failed to create tar.gz: %v", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	content := []byte("x.com:user:pass\n")
	if err := tw.WriteHeader(&tar.Header{
		Name: "inner/creds.txt",
		Mode: 0o644,
		Size: int64(len(content)),
	}); err != nil {
		t.Fatalf("failed to write tar header: %v", err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("failed to write tar body: %v", err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	lines, err := newReader().ReadLines(tarPath, "")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "x.com:user:pass" {
		t.Errorf("got %v", lines)
	}
}

func TestReadLines_Gzip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gzPath := filepath.Join(dir, "creds.txt.gz")

	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatalf("failed to create gz: %v", err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte("y.com:u:p\n")); err != nil {
		t.Fatalf("failed to write gz: %v", err)
	}
	gz.Close()
	f.Close()

	lines, err := newReader().ReadLines(gzPath, "")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "y.com:u:p" {
		t.Errorf("got %v", lines)
	}
}

func TestReadLines_CorruptArchiveFailsClosed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "broken.zip", []byte("this is not a zip"))

	lines, err := newReader().ReadLines(path, "")
	if err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	if len(lines) != 0 {
		t.Errorf("expected no partial output, got %v", lines)
	}
}

func TestReadLines_UndecodableMemberSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Invalid UTF-8 and non-ASCII bytes, with a text-candidate extension.
	path := writeFile(t, dir, "bad.txt", []byte{0xff, 0xfe, 0x80, 0x81})

	lines, err := newReader().ReadLines(path, "")
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected undecodable file to yield nothing, got %v", lines)
	}
}

func TestReadLines_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := newReader().ReadLines(filepath.Join(t.TempDir(), "nope.txt"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
