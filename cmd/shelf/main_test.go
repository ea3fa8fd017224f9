package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/shelf/internal/config"
	"github.com/FranksOps/shelf/pkg/mask"
)

func TestMaskCmd(t *testing.T) {
	t.Setenv("SHELF_MASK_SALT", "s1")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"mask", "https://shop.example/goods/syrniki-123.html?x=1"})
	require.NoError(t, cmd.Execute())

	want := mask.New(mask.Config{Salt: "s1"}).URL("https://shop.example/goods/syrniki-123.html")
	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(line, want+"\t"), "got %q", line)
	assert.Contains(t, want, "/goods/syrniki-123.html")
	assert.NotContains(t, want, "shop.example")
}

func TestMaskCmd_RequiresArg(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"mask"})
	assert.Error(t, cmd.Execute())
}

func TestCrawlCmd_InvalidFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"crawl", "--max-pages", "0"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.max_pages")
}

func TestRunCrawl_InterruptedRunFails(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Storage.Path = filepath.Join(dir, "dataset.tsv")
	cfg.Storage.PicturesDir = filepath.Join(dir, "pictures")
	cfg.Fetch.ProxiesFile = ""
	cfg.Metrics.Port = 0
	cfg.Logging.Development = false
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = runCrawl(ctx, cfg, "none", &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "crawl interrupted")
}
