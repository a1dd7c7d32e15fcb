package tools

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/stigmergylite/pkg/logger"
)

const defaultDownloadTimeout = 10 * time.Minute

// Archive formats understood by FetchArtifact.
const (
	FormatZip   = "zip"
	FormatTarGz = "tar.gz"
)

// ArtifactRequest describes a precompiled release archive to install.
type ArtifactRequest struct {
	URL    string
	Format string
	// Dest is the directory the archive is extracted into.
	Dest string
	// StripComponents drops that many leading path elements from each entry.
	StripComponents int
	// SHA256 is optional; when set the download must match it.
	SHA256 string
	// CacheDir keeps downloaded archives between runs; empty uses a temp dir.
	CacheDir string
	Timeout  time.Duration
}

type ArtifactResult struct {
	Dest    string
	Archive string
	Files   int
}

// ErrDownload marks failures talking to the release host; these are worth retrying.
var ErrDownload = errors.New("artifact download failed")

// ErrArtifactRejected marks a release host answer that a retry cannot change,
// such as 404 for a wrong URL.
var ErrArtifactRejected = errors.New("artifact request rejected")

// FetchArtifact downloads (or reuses) the archive, verifies it and extracts it into Dest.
func FetchArtifact(ctx context.Context, client *http.Client, req ArtifactRequest) (*ArtifactResult, error) {
	format := req.Format
	if format == "" {
		format = formatFromURL(req.URL)
	}
	if format != FormatZip && format != FormatTarGz {
		return nil, fmt.Errorf("unsupported archive format: %q", req.Format)
	}

	archive, err := downloadArtifact(ctx, client, req)
	if err != nil {
		return nil, err
	}

	if req.SHA256 != "" {
		if err := verifyChecksum(archive, req.SHA256); err != nil {
			_ = os.Remove(archive)
			return nil, fmt.Errorf("checksum verification failed: %w", err)
		}
		logger.Debug("checksum verified", logger.String("archive", archive))
	}

	if err := os.MkdirAll(req.Dest, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	var n int
	switch format {
	case FormatZip:
		n, err = extractZip(archive, req.Dest, req.StripComponents)
	default:
		n, err = extractTarGz(archive, req.Dest, req.StripComponents)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract artifact: %w", err)
	}

	logger.Info("artifact installed", logger.String("dest", req.Dest), logger.Int("files", n))
	return &ArtifactResult{Dest: req.Dest, Archive: archive, Files: n}, nil
}

func formatFromURL(u string) string {
	switch {
	case strings.HasSuffix(u, ".zip"):
		return FormatZip
	case strings.HasSuffix(u, ".tar.gz"), strings.HasSuffix(u, ".tgz"):
		return FormatTarGz
	}
	return ""
}

func downloadArtifact(ctx context.Context, client *http.Client, req ArtifactRequest) (string, error) {
	cacheDir := req.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "stigmergylite-downloads")
	}
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	downloadPath := filepath.Join(cacheDir, path.Base(req.URL))
	if info, err := os.Stat(downloadPath); err == nil && info.Size() > 0 {
		logger.Debug("using cached artifact", logger.String("path", downloadPath))
		return downloadPath, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if client == nil {
		client = http.DefaultClient
	}

	logger.Info("downloading artifact", logger.String("url", req.URL))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid artifact url: %w", err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return "", err
	}

	tmpFile := downloadPath + ".tmp"
	out, err := os.Create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmpFile, downloadPath); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to move file: %w", err)
	}

	logger.Debug("artifact downloaded", logger.String("path", downloadPath))
	return downloadPath, nil
}

func verifyChecksum(filePath, expectedSHA256 string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if !strings.EqualFold(actual, expectedSHA256) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedSHA256, actual)
	}
	return nil
}

// entryTarget maps an archive entry name to a path under dest, applying
// strip. It returns "" for entries that strip away entirely and an error for
// entries that would escape dest.
func entryTarget(dest, name string, strip int) (string, error) {
	name = strings.TrimLeft(strings.ReplaceAll(name, `\`, "/"), "/")
	parts := strings.Split(path.Clean(name), "/")
	if len(parts) <= strip {
		return "", nil
	}
	rel := path.Join(parts[strip:]...)
	if rel == "." || rel == "" {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return filepath.Join(dest, filepath.FromSlash(rel)), nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	// #nosec G110 - archives come from pinned release URLs
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract file: %w", err)
	}
	return out.Close()
}

func extractTarGz(archivePath, dest string, strip int) (int, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = file.Close() }()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	tr := tar.NewReader(gzr)
	count := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read tar: %w", err)
		}

		target, err := entryTarget(dest, header.Name, strip)
		if err != nil {
			return count, err
		}
		if target == "" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(header.Mode)); err != nil {
				return count, err
			}
			count++
		case tar.TypeSymlink:
			link := filepath.Join(filepath.Dir(target), header.Linkname)
			if filepath.IsAbs(header.Linkname) || !within(dest, link) {
				logger.Debug("skipping symlink outside destination", logger.String("entry", header.Name))
				continue
			}
			_ = os.Remove(target)
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return count, err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func extractZip(archivePath, dest string, strip int) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open zip: %w", err)
	}
	defer func() { _ = r.Close() }()

	count := 0
	for _, f := range r.File {
		target, err := entryTarget(dest, f.Name, strip)
		if err != nil {
			return count, err
		}
		if target == "" {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return count, err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return count, fmt.Errorf("failed to open file in zip: %w", err)
		}
		err = writeEntry(target, rc, f.Mode())
		_ = rc.Close()
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// statusError classifies a non-200 answer: 5xx and 429 are transient,
// everything else is final.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %s", ErrDownload, resp.Status)
	default:
		return fmt.Errorf("%w: %s returned %s", ErrArtifactRejected, resp.Request.URL, resp.Status)
	}
}
