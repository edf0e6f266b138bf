package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, c.File)

	want := Default()
	assert.Equal(t, want.Format, c.Format)
	assert.Equal(t, want.Quality, c.Quality)
	assert.Equal(t, want.FitMode, c.FitMode)
	assert.Equal(t, 50, c.HistoryCapacity)
	assert.Equal(t, 500*time.Millisecond, c.SnapshotDelay)
	assert.Equal(t, 50*time.Millisecond, c.RefreshDelay)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `in:
  - /photos/2024
  - /photos/2025
out: /tmp/out
format: pdf
quality: 80
social: [instagram_square, weibo]
template: preset-instagram
keep_originals: true
snapshot_delay: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "imgecho.yaml"), []byte(yaml), 0o600))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "imgecho.yaml"), c.File)
	assert.Equal(t, []string{"/photos/2024", "/photos/2025"}, c.InDirs)
	assert.Equal(t, "/tmp/out", c.OutDir)
	assert.Equal(t, "pdf", c.Format)
	assert.Equal(t, 80, c.Quality)
	assert.Equal(t, []string{"instagram_square", "weibo"}, c.Social)
	assert.Equal(t, "preset-instagram", c.Template)
	assert.True(t, c.KeepOriginals)
	assert.Equal(t, 2*time.Second, c.SnapshotDelay)
	assert.Equal(t, "cover", c.FitMode, "unset keys keep defaults")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("IMGECHO_QUALITY", "70")
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 70, c.Quality)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "imgecho.yaml"), []byte("in: [unclosed\n"), 0o600))
	_, err := Load(dir)
	assert.Error(t, err)
}
