package ingest

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// errUnsafePath guards against archive members escaping the temp directory.
var errUnsafePath = errors.New("archive member escapes extraction directory")

// extractContainer detects the container format of filePath by extension and
// extracts its members into tempDir, returning the extracted file paths.
// Non-container files pass through as a single-element slice.
func extractContainer(filePath, tempDir string) ([]string, error) {
	name := strings.ToLower(filepath.Base(filePath))
	ext := strings.ToLower(filepath.Ext(filePath))

	switch {
	case ext == ".zip":
		return extractZip(filePath, tempDir)
	case ext == ".tar" || ext == ".tgz" || strings.Contains(name, ".tar."):
		return extractTar(filePath, tempDir)
	case ext == ".gz":
		return extractGzip(filePath, tempDir)
	case ext == ".7z":
		return extract7z(filePath, tempDir)
	case ext == ".rar":
		return extractRar(filePath, tempDir)
	default:
		return []string{filePath}, nil
	}
}

// safeJoin resolves an archive member name inside dir, rejecting traversal.
func safeJoin(dir, name string) (string, error) {
	cleaned := filepath.Join(dir, filepath.Clean("/"+name))
	if !strings.HasPrefix(cleaned, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	return cleaned, nil
}

func writeMember(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create member directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create member file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("failed to write member: %w", err)
	}
	return nil
}

func extractZip(filePath, tempDir string) ([]string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	var extracted []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, joinErr := safeJoin(tempDir, f.Name)
		if joinErr != nil {
			return nil, joinErr
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return nil, fmt.Errorf("failed to open zip member %s: %w", f.Name, openErr)
		}
		writeErr := writeMember(dest, rc)
		rc.Close()
		if writeErr != nil {
			return nil, writeErr
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extractTar(filePath, tempDir string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tar: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	name := strings.ToLower(filePath)
	if strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.gz") {
		gz, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", gzErr)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	var extracted []string
	for {
		hdr, nextErr := tr.Next()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", nextErr)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dest, joinErr := safeJoin(tempDir, hdr.Name)
		if joinErr != nil {
			return nil, joinErr
		}
		if writeErr := writeMember(dest, tr); writeErr != nil {
			return nil, writeErr
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extractGzip(filePath, tempDir string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	// foo.txt.gz extracts to foo.txt
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	dest := filepath.Join(tempDir, base)
	if err := writeMember(dest, gz); err != nil {
		return nil, err
	}
	return []string{dest}, nil
}

func extract7z(filePath, tempDir string) ([]string, error) {
	sz, err := sevenzip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}
	defer sz.Close()

	var extracted []string
	for _, f := range sz.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, joinErr := safeJoin(tempDir, f.Name)
		if joinErr != nil {
			return nil, joinErr
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return nil, fmt.Errorf("failed to open 7z member %s: %w", f.Name, openErr)
		}
		writeErr := writeMember(dest, rc)
		rc.Close()
		if writeErr != nil {
			return nil, writeErr
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extractRar(filePath, tempDir string) ([]string, error) {
	rr, err := rardecode.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar: %w", err)
	}
	defer rr.Close()

	var extracted []string
	for {
		hdr, nextErr := rr.Next()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			return nil, fmt.Errorf("failed to read rar entry: %w", nextErr)
		}
		if hdr.IsDir {
			continue
		}
		dest, joinErr := safeJoin(tempDir, hdr.Name)
		if joinErr != nil {
			return nil, joinErr
		}
		if writeErr := writeMember(dest, rr); writeErr != nil {
			return nil, writeErr
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}
