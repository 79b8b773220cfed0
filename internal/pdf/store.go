package pdf

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mr-tron/base58"
)

// TokenBytes is the entropy of a download token before encoding.
const TokenBytes = 32

// NewToken returns a random base58 download token.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("download token: %w", err)
	}
	return base58.Encode(b), nil
}

// Store keeps generated files in one local directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("pdf storage %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName is "{kind}_{number}_{token[:8]}.pdf" with unsafe characters replaced.
func FileName(kind, number, token string) string {
	if len(token) > 8 {
		token = token[:8]
	}
	return unsafeName.ReplaceAllString(fmt.Sprintf("%s_%s_%s.pdf", kind, number, token), "_")
}

// Write stores data under name and returns the file path.
func (s *Store) Write(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

// Read returns the file contents; a missing file is fs.ErrNotExist.
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove deletes path. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
