package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/backtrackers-api/pkg/imaging"
)

// ErrForeignURL is returned when deleting a URL this store did not issue.
var ErrForeignURL = errors.New("storage: url not served by media store")

// MediaStore uploads normalised images into per-kind namespaces and serves them under a public base URL.
type MediaStore struct {
	blobs      *LocalStorage
	normalizer *imaging.Normalizer
	baseURL    string
	logger     *zap.Logger
	now        func() time.Time
}

// NewMediaStore wires the blob storage, image normalizer and public base URL.
func NewMediaStore(blobs *LocalStorage, normalizer *imaging.Normalizer, publicBaseURL string, logger *zap.Logger) *MediaStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaStore{
		blobs:      blobs,
		normalizer: normalizer,
		baseURL:    strings.TrimRight(publicBaseURL, "/"),
		logger:     logger,
		now:        time.Now,
	}
}

// Upload normalises the file at localPath and stores it under namespace.
// The local file is removed whether or not the upload succeeds.
func (m *MediaStore) Upload(ctx context.Context, localPath, namespace string) (url string, err error) {
	defer func() {
		if rmErr := os.Remove(localPath); rmErr != nil && !os.IsNotExist(rmErr) {
			m.logger.Warn("remove temp upload", zap.String("path", localPath), zap.Error(rmErr))
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if namespace == "" || strings.Contains(namespace, "..") {
		return "", fmt.Errorf("invalid media namespace %q", namespace)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close() //nolint:errcheck

	result, err := m.normalizer.Process(file)
	if err != nil {
		return "", err
	}

	key := path.Join(namespace, fmt.Sprintf("%d-%s.jpg", m.now().UnixNano(), strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
	if err := m.blobs.Save(key, result.Data); err != nil {
		return "", err
	}
	return m.baseURL + "/" + key, nil
}

// Delete removes the blob behind url.
func (m *MediaStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := m.keyFor(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	return m.blobs.Delete(key)
}

func (m *MediaStore) keyFor(url string) (string, bool) {
	prefix := m.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}
