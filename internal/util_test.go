package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gcottom/go-zaplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("https://www.youtube.com/watch?v=abc"))
	assert.True(t, IsHTTPURL("  http://example.com/x "))
	assert.False(t, IsHTTPURL("ftp://example.com"))
	assert.False(t, IsHTTPURL("youtube.com/watch?v=abc"))
	assert.False(t, IsHTTPURL("https://"))
	assert.False(t, IsHTTPURL(""))
}

func TestValidateURL(t *testing.T) {
	u, err := ValidateURL(" https://youtu.be/abc ")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/abc", u)

	_, err = ValidateURL("not a url")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestEnsureDir(t *testing.T) {
	ctx := zaplog.CreateAndInject(context.Background())
	base := t.TempDir()

	dir, err := EnsureDir(ctx, filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = EnsureDir(ctx, file)
	require.ErrorIs(t, err, ErrNotDir)

	_, err = EnsureDir(ctx, "")
	require.Error(t, err)
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("/tmp/a_b/c_d"), SanitizePath("/tmp/a:b/c?d"))
	assert.Equal(t, filepath.FromSlash("rel/x_y"), SanitizePath("rel/x*y"))
}

func TestDetectFFmpeg(t *testing.T) {
	assert.Empty(t, DetectFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg")))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "", FormatDuration(0))
	assert.Equal(t, "0:59", FormatDuration(59*time.Second))
	assert.Equal(t, "3:05", FormatDuration(185*time.Second))
	assert.Equal(t, "1:01:01", FormatDuration(3661*time.Second))
}
