package safeio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
)

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("empty path")
	}
	c := filepath.Clean(p)
	for _, part := range strings.Split(filepath.ToSlash(c), "/") {
		if part == ".." {
			return "", errors.New("path traversal detected")
		}
	}
	// Normalize to forward slashes for cross-platform consistency
	return filepath.ToSlash(c), nil
}

// WriteFileAtomic writes data to a uniquely named sibling temp file and renames
// it over path. An existing file keeps its permission bits; new files get perm.
func WriteFileAtomic(fs billy.Filesystem, path string, data []byte, perm os.FileMode) error {
	if st, err := fs.Stat(path); err == nil {
		if m := st.Mode() & 0o777; m != 0 {
			perm = m
		}
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tempPath := fmt.Sprintf("%s.tmp.%s", path, uuid.New().String())
	f, err := fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", tempPath, err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = fs.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to target: %w", err)
	}
	cleanup = false
	return nil
}

// AppendFile appends data to path, creating it (and its parent) when missing.
func AppendFile(fs billy.Filesystem, path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// BackupFile copies path to "<path>.backup.<unix-millis>" and returns the new name.
// The original file is left untouched.
func BackupFile(fs billy.Filesystem, path string, now time.Time) (string, error) {
	src, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	backup := path + ".backup." + strconv.FormatInt(now.UnixMilli(), 10)
	if _, err := fs.Stat(backup); err == nil {
		backup += "-" + uuid.New().String()[:8]
	}

	dst, err := fs.OpenFile(backup, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create backup %s: %w", backup, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = fs.Remove(backup)
		return "", fmt.Errorf("failed to copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return backup, nil
}

// Exists reports whether path exists on fs. Stat errors other than not-exist
// count as present so callers never overwrite something they could not inspect.
func Exists(fs billy.Filesystem, path string) bool {
	_, err := fs.Stat(path)
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrNotExist)
}

// DirWritable probes dir by creating and removing a temp file.
func DirWritable(fs billy.Filesystem, dir string) error {
	st, err := fs.Stat(dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := fs.TempFile(dir, ".write-probe-")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return fs.Remove(name)
}
