// Package security guards the files operators hand to the CLI.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxEventFileSize caps files read through ReadEventFile.
const MaxEventFileSize = 1 << 20

var (
	// ErrEmptyPath is returned for an empty path.
	ErrEmptyPath = errors.New("file path cannot be empty")
	// ErrForbiddenChar is returned for a path holding a shell metacharacter.
	ErrForbiddenChar = errors.New("file path contains forbidden character")
	// ErrFileTooLarge is returned when a file exceeds MaxEventFileSize.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNotRegular is returned for directories, devices and pipes.
	ErrNotRegular = errors.New("not a regular file")
)

// shellMeta lists characters no replay file name needs.
const shellMeta = ";&|$`(){}<>!\n\r"

// CleanPath returns path absolute, cleaned and with symlinks resolved. A
// path that does not exist yet is returned unresolved.
func CleanPath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if i := strings.IndexAny(path, shellMeta); i >= 0 {
		return "", fmt.Errorf("%w %q: %s", ErrForbiddenChar, path[i], path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		return resolved, nil
	case errors.Is(err, os.ErrNotExist):
		return abs, nil
	default:
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
}

// ReadEventFile reads a regular file of at most MaxEventFileSize bytes.
func ReadEventFile(path string) ([]byte, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(clean) // #nosec G304 -- cleaned above
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxEventFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxEventFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, path, MaxEventFileSize)
	}
	return data, nil
}
