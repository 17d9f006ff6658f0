// Package filex contains filesystem helpers: the staging area used for
// uploads and archive exports, and upload filename sanitization.
package filex

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureStagingDir creates dir if needed and returns its absolute path.
// Relative paths are resolved against the working directory.
func EnsureStagingDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// StagedFile is a temporary copy of uploaded content together with the
// digests computed while it was written.
type StagedFile struct {
	Path   string
	Size   int64
	SHA256 string
	MD5    string
}

// Stage copies r into a new temporary file under dir, hashing on the way.
// The caller owns the file and must call Remove when done.
func Stage(dir string, r io.Reader) (*StagedFile, error) {
	f, err := os.CreateTemp(dir, "stage-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	sh := sha256.New()
	mh := md5.New()

	n, err := io.Copy(io.MultiWriter(f, sh, mh), r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write staging file: %w", err)
	}

	return &StagedFile{
		Path:   f.Name(),
		Size:   n,
		SHA256: hex.EncodeToString(sh.Sum(nil)),
		MD5:    hex.EncodeToString(mh.Sum(nil)),
	}, nil
}

// Open opens the staged content for reading.
func (s *StagedFile) Open() (*os.File, error) {
	return os.Open(s.Path)
}

// Remove deletes the staged file. Removing an already removed file is not an error.
func (s *StagedFile) Remove() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
