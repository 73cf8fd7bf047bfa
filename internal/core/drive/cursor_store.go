package drive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/drivesync/internal/core"
)

// FileCursorStore keeps the delta cursor in a local file.
type FileCursorStore struct {
	path string
}

var _ core.CursorStore = (*FileCursorStore)(nil)

func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

// Load returns "" when the file does not exist yet.
func (s *FileCursorStore) Load(_ context.Context) (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Reset removes the cursor file. A missing file is not an error.
func (s *FileCursorStore) Reset(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cursor: %w", err)
	}
	return nil
}

// Save replaces the file atomically.
func (s *FileCursorStore) Save(_ context.Context, cursor string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cursor: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(cursor); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cursor: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cursor: %w", err)
	}
	return nil
}
