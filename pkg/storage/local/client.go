package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/siamgems/inventory-backend/pkg/config"
	"github.com/siamgems/inventory-backend/pkg/logger"
)

// Key prefixes for the media subtrees.
const (
	ProductImagesPrefix = "product_images"
	QRCodeImagesPrefix  = "qrcode_images"
	BarcodeImagesPrefix = "barcode_images"
)

// Store is the blob surface consumed by domain services.
type Store interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client stores blobs under a media root on local disk.
type Client struct {
	root string
}

// NewClient validates the media root and ensures the standard subtrees exist.
func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if cfg.MediaRoot == "" {
		return nil, errors.New("media root is required")
	}
	for _, prefix := range []string{ProductImagesPrefix, QRCodeImagesPrefix, BarcodeImagesPrefix} {
		if err := os.MkdirAll(filepath.Join(cfg.MediaRoot, prefix), 0o755); err != nil {
			return nil, fmt.Errorf("creating media dir %s: %w", prefix, err)
		}
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "media_root", cfg.MediaRoot), "media storage ready")
	}
	return &Client{root: cfg.MediaRoot}, nil
}

// BuildKey joins a prefix and filename into a storage key.
func BuildKey(prefix, name string) string {
	return prefix + "/" + SanitizeFileName(name)
}

// SanitizeFileName strips path components and characters unsafe for keys.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == '(', r == ')':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

func (c *Client) resolve(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("storage key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("storage key %q escapes media root", key)
	}
	return filepath.Join(c.root, clean), nil
}

// Save writes the blob at key, replacing any existing content.
func (c *Client) Save(ctx context.Context, key string, data io.Reader) error {
	full, err := c.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating blob dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("creating blob %s: %w", key, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return f.Close()
}

// Open returns a reader over the blob at key.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", key, err)
	}
	return f, nil
}

// Exists reports whether a blob is stored at key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	full, err := c.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the blob at key. Missing blobs are not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	full, err := c.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}

// Ping verifies the media root is writable.
func (c *Client) Ping(ctx context.Context) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("media root %s is not a directory", c.root)
	}
	return nil
}
