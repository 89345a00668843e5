// Package modelcache keeps a local copy of the checkpoint files the service needs.
package modelcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gomlx/go-huggingface/hub"

	"github.com/hrygo/localchat/plugin/ai"
)

// Downloader fetches one repository file and returns its local path.
type Downloader interface {
	DownloadFile(fileName string) (string, error)
}

// Cache mirrors the configured files of a Hugging Face checkpoint into
// ModelConfig.Dir. Downloads land in ModelConfig.CacheDir first.
type Cache struct {
	cfg        ai.ModelConfig
	downloader Downloader
}

// New creates a Cache backed by the Hugging Face hub.
func New(cfg ai.ModelConfig) *Cache {
	repo := hub.New(cfg.Name).WithCacheDir(cfg.CacheDir)
	if cfg.HFToken != "" {
		repo = repo.WithAuth(cfg.HFToken)
	}
	return NewWithDownloader(cfg, repo)
}

// NewWithDownloader creates a Cache using d to fetch missing files.
func NewWithDownloader(cfg ai.ModelConfig, d Downloader) *Cache {
	return &Cache{cfg: cfg, downloader: d}
}

// Dir returns the local checkpoint directory.
func (c *Cache) Dir() string {
	return c.cfg.Dir
}

// Missing lists the configured files not yet present in Dir.
func (c *Cache) Missing() []string {
	var missing []string
	for _, name := range c.cfg.Files {
		if _, err := os.Stat(filepath.Join(c.cfg.Dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Ensure downloads every missing file into Dir and returns Dir.
// Files already present are left alone, so a populated cache needs no network.
func (c *Cache) Ensure(ctx context.Context) (string, error) {
	missing := c.Missing()
	if len(missing) == 0 {
		return c.cfg.Dir, nil
	}

	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model dir: %w", err)
	}

	logger := slog.With("model", c.cfg.Name, "dir", c.cfg.Dir)
	logger.Info("fetching model files", "files", missing)
	start := time.Now()

	for _, name := range missing {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		downloaded, err := c.downloader.DownloadFile(name)
		if err != nil {
			return "", fmt.Errorf("failed to download %s from %s: %w", name, c.cfg.Name, err)
		}
		if err := copyFile(downloaded, filepath.Join(c.cfg.Dir, name)); err != nil {
			return "", fmt.Errorf("failed to store %s: %w", name, err)
		}
		logger.Debug("model file stored", "file", name)
	}

	logger.Info("model files ready", "count", len(missing), "duration_ms", time.Since(start).Milliseconds())
	return c.cfg.Dir, nil
}

// copyFile writes src to dst through a temp file so a partial copy is never
// mistaken for a cached file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
