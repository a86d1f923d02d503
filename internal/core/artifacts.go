package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// ArtifactStore is the directory of rendered label documents. Documents are
// never deleted here; their presence marks a unit as already handled.
type ArtifactStore struct {
	dir string
}

func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create label directory: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

func (s *ArtifactStore) Dir() string {
	return s.dir
}

// FileName returns e.g. "#1001_2-3.pdf" for unit 2 of 3.
func FileName(orderName string, index, quantity int) string {
	return fmt.Sprintf("%s_%d-%d.pdf", sanitizeFilename(orderName), index, quantity)
}

func (s *ArtifactStore) Path(orderName string, index, quantity int) string {
	return filepath.Join(s.dir, FileName(orderName, index, quantity))
}

func (s *ArtifactStore) Exists(orderName string, index, quantity int) bool {
	_, err := os.Stat(s.Path(orderName, index, quantity))
	return err == nil
}

// writeAtomic creates the document through fn in a temp file next to the
// final path and renames it into place, so a failed write leaves nothing
// that Exists would report.
func (s *ArtifactStore) writeAtomic(finalPath string, fn func(tmpPath string) error) error {
	tmp, err := os.CreateTemp(s.dir, ".label-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpName)

	if err := fn(tmpName); err != nil {
		return err
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		return fmt.Errorf("rename label into place: %w", err)
	}
	return nil
}
