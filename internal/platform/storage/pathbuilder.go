package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ErrUnsupportedContentType is returned for image types outside the allow-list.
var ErrUnsupportedContentType = errors.New("storage: content type not allowed")

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageExtension returns the file extension for an allowed image content type.
func ImageExtension(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := imageExtensions[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return ext, nil
}

// ProductImagePath composes products/<handle>/<ulid><ext>.
func ProductImagePath(handle, contentType string) (string, error) {
	segment, err := validateSegment("handle", handle)
	if err != nil {
		return "", err
	}
	ext, err := ImageExtension(contentType)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("products/%s/%s%s", segment, strings.ToLower(ulid.Make().String()), ext), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
