package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// PublicPath is where the local backend's directory is served.
const PublicPath = "/uploads"

type LocalBackend struct {
	dir string
}

func NewLocalBackend(dir string) *LocalBackend {
	return &LocalBackend{dir: dir}
}

func (b *LocalBackend) Dir() string { return b.dir }

func (b *LocalBackend) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(b.dir, key), nil
}

func (b *LocalBackend) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close upload: %w", err)
	}
	// The process umask may have narrowed the create mode.
	if err := os.Chmod(dst, 0o644); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("chmod upload: %w", err)
	}
	return nil
}

func (b *LocalBackend) Remove(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

func (b *LocalBackend) Walk(ctx context.Context, fn func(Object) error) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read upload dir: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if err := fn(Object{Key: e.Name(), Size: info.Size(), ModTime: info.ModTime()}); err != nil {
			return err
		}
	}
	return nil
}

func (b *LocalBackend) URL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + PublicPath + "/" + url.PathEscape(key)
}
