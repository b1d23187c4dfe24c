package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore writes uploads to a local directory and serves them from a
// base URL (the HTTP layer exposes the directory as static files).
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the media directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Upload decodes the payload and writes it under a random name.
func (d *DiskStore) Upload(ctx context.Context, data string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, ext, err := decodePayload(data)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}

	return d.baseURL + "/" + name, nil
}

var _ Store = (*DiskStore)(nil)
