package github

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// MaxArchiveBytes bounds the total extracted size of one snapshot.
const MaxArchiveBytes = 4 << 30

// extract unpacks a gzipped tarball into dir, dropping the archive's
// top-level directory. It returns the number of files written.
func extract(r io.Reader, dir string) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: read archive: %w", domain.ErrTransient, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var written int64
	files := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			// truncated downloads surface here
			return files, fmt.Errorf("%w: read archive: %w", domain.ErrTransient, err)
		}

		rel, ok := stripTopDir(hdr.Name)
		if !ok {
			continue
		}
		target, err := safeJoin(dir, rel)
		if err != nil {
			return files, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("create %s: %w", rel, err)
			}
		case tar.TypeReg:
			if written+hdr.Size > MaxArchiveBytes {
				return files, fmt.Errorf("%w: archive exceeds %d bytes", domain.ErrInvalidInput, int64(MaxArchiveBytes))
			}
			if err := writeFile(target, tr, hdr); err != nil {
				return files, fmt.Errorf("write %s: %w", rel, err)
			}
			written += hdr.Size
			files++
		default:
			// links, devices and pax headers
			logger.Debug("archive: skipping %s (type %c)", rel, hdr.Typeflag)
		}
	}
}

// stripTopDir removes the first path element. Entries at the top level
// itself report false.
func stripTopDir(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return "", false
	}
	rest := strings.Trim(name[i+1:], "/")
	return rest, rest != ""
}

// safeJoin joins a slash-separated archive path onto dir, rejecting paths
// that leave dir.
func safeJoin(dir, rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" || strings.Contains(rel, `\`) || hasDotDot(rel) {
		return "", fmt.Errorf("%w: %w: %q", domain.ErrInvalidInput, ErrUnsafeArchive, rel)
	}
	target := filepath.Join(dir, filepath.FromSlash(clean))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %w: %q", domain.ErrInvalidInput, ErrUnsafeArchive, rel)
	}
	return target, nil
}

func hasDotDot(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func writeFile(target string, r io.Reader, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	mode := hdr.FileInfo().Mode().Perm() | 0o600
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, hdr.Size); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return f.Close()
}
