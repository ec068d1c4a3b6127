package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampParallel(t *testing.T) {
	tests := map[int]int{
		0:   DefaultMaxParallel,
		-3:  MinParallel,
		1:   1,
		3:   3,
		5:   5,
		6:   MaxParallel,
		100: MaxParallel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ClampParallel(in), "ClampParallel(%d)", in)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfigFromFile("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "./downloads", cfg.SaveDir)
	assert.Equal(t, 2, cfg.MaxParallel)
	assert.Equal(t, 2*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, 500*time.Millisecond, cfg.ProgressInterval)
	require.Len(t, cfg.Presets, 5)

	p, ok := cfg.Preset("Audio only (MP3)")
	require.True(t, ok)
	assert.True(t, p.ExtractAudio)
	assert.Equal(t, "bestaudio/best", p.Format)

	p, ok = cfg.Preset("")
	require.True(t, ok)
	assert.Equal(t, "Best", p.Label)
}

func TestLoadConfigFromFile_NormalizesMinimalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_parallel: 9\ndefault_preset: nope\n"), 0o644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, MaxParallel, cfg.MaxParallel)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultOutputTemplate, cfg.OutputTemplate)
	assert.Equal(t, DefaultPresets, cfg.Presets)
	assert.Equal(t, "Best", cfg.DefaultPreset)
	assert.NotEmpty(t, cfg.SaveDir)
}

func TestLoadConfigFromFile_Errors(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_parallel: [1, 2\n"), 0o644))
	_, err = LoadConfigFromFile(path)
	require.Error(t, err)
}
