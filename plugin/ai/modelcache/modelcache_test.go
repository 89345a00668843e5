package modelcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/localchat/plugin/ai"
)

type fakeDownloader struct {
	dir   string
	calls []string
	err   error
}

func (f *fakeDownloader) DownloadFile(name string) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte("content of "+name), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func testModelConfig(t *testing.T) ai.ModelConfig {
	root := t.TempDir()
	return ai.ModelConfig{
		Name:     "croissantllm/CroissantLLMChat-v0.1",
		Dir:      filepath.Join(root, "model_local"),
		CacheDir: filepath.Join(root, "hub"),
		Files:    []string{"config.json", "tokenizer.json"},
	}
}

func TestEnsure_DownloadsMissing(t *testing.T) {
	cfg := testModelConfig(t)
	d := &fakeDownloader{dir: t.TempDir()}
	c := NewWithDownloader(cfg, d)

	assert.Equal(t, cfg.Files, c.Missing())

	dir, err := c.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.Dir, dir)
	assert.Equal(t, []string{"config.json", "tokenizer.json"}, d.calls)
	assert.Empty(t, c.Missing())

	data, err := os.ReadFile(filepath.Join(cfg.Dir, "tokenizer.json"))
	require.NoError(t, err)
	assert.Equal(t, "content of tokenizer.json", string(data))

	// A populated cache needs no download.
	d.calls = nil
	_, err = c.Ensure(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.calls)
}

func TestEnsure_OnlyMissingFiles(t *testing.T) {
	cfg := testModelConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir, "config.json"), []byte("{}"), 0o644))

	d := &fakeDownloader{dir: t.TempDir()}
	_, err := NewWithDownloader(cfg, d).Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"tokenizer.json"}, d.calls)
}

func TestEnsure_Errors(t *testing.T) {
	t.Run("download failure", func(t *testing.T) {
		boom := errors.New("404")
		d := &fakeDownloader{dir: t.TempDir(), err: boom}
		_, err := NewWithDownloader(testModelConfig(t), d).Ensure(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d := &fakeDownloader{dir: t.TempDir()}
		_, err := NewWithDownloader(testModelConfig(t), d).Ensure(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, d.calls)
	})
}
