// Package storage keeps uploaded product images.
package storage

import (
	"context"
	"io"
)

// ImageStore saves product images and reports where they are served from.
type ImageStore interface {
	// Save stores size bytes read from r under key and returns the public path or URL.
	Save(ctx context.Context, key, contentType string, size int64, r io.Reader) (string, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// Key returns the key of an image this store saved under path, if any.
	Key(path string) (string, bool)
}
