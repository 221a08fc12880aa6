package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploader resolves an inline image payload to a durable URI before the
// message is persisted. A failure here aborts the send.
type Uploader interface {
	Upload(ctx context.Context, dataURI string) (string, error)
}

// DiskUploader decodes data URIs to files under Dir and serves them back as
// BaseURL/uploads/<name>. It stands in for a hosted content store.
type DiskUploader struct {
	Dir     string
	BaseURL string
}

func NewDiskUploader(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskUploader{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// parseDataURI splits "data:image/png;base64,...." into media type and payload.
func parseDataURI(dataURI string) (mediaType string, payload string, err error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URI")
	}
	mediaType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return "", "", fmt.Errorf("expected base64 data URI")
	}
	return mediaType, payload, nil
}

func (u *DiskUploader) Upload(ctx context.Context, dataURI string) (string, error) {
	mediaType, payload, err := parseDataURI(dataURI)
	if err != nil {
		return "", err
	}
	ext, ok := extensions[mediaType]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(u.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	return u.BaseURL + "/uploads/" + name, nil
}
