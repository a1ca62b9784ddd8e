package booknetwork

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DiskStorage stores uploads under root/<ownerID>/<uuid><ext> and returns the
// relative path as the reference.
type DiskStorage struct {
	root   string
	logger Logger
}

func NewDiskStorage(root string) *DiskStorage {
	return &DiskStorage{root: root, logger: defLogger{}}
}

func (d *DiskStorage) WithLogger(l Logger) *DiskStorage {
	if l != nil {
		d.logger = l
	}
	return d
}

func (d *DiskStorage) SaveFile(_ context.Context, ownerID, filename string, data []byte) (string, error) {
	dir := filepath.Join(d.root, sanitizePathSegment(ownerID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create upload directory")
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write upload")
	}

	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return path, nil
	}

	d.logger.Debug("stored upload %s (%d bytes)", rel, len(data))
	return rel, nil
}

// sanitizePathSegment keeps owner directories flat even if the id contains
// separators.
func sanitizePathSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "..", "_")
	return s
}

var _ FileStorage = (*DiskStorage)(nil)
