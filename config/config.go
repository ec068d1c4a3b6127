package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPath             = "./config/config.yaml"
	DefaultMaxParallel      = 2
	MinParallel             = 1
	MaxParallel             = 5
	DefaultListenAddr       = ":50999"
	DefaultShutdownGrace    = 2 * time.Second
	DefaultProbeLimit       = 2
	DefaultProbeAttempts    = 3
	DefaultOutputTemplate   = "%(title).180B.%(ext)s"
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultHistoryDB        = "./data/history.db"
)

type Preset struct {
	Label        string `yaml:"label" json:"label"`
	Format       string `yaml:"format" json:"format"`
	ExtractAudio bool   `yaml:"extract_audio" json:"extract_audio"`
}

// DefaultPresets mirror the desktop client's format menu.
var DefaultPresets = []Preset{
	{Label: "Best", Format: "bestvideo+bestaudio/best"},
	{Label: "1080p", Format: "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best[height<=1080]"},
	{Label: "720p", Format: "bestvideo[height<=720]+bestaudio/best[height<=720]/best[height<=720]"},
	{Label: "480p", Format: "bestvideo[height<=480]+bestaudio/best[height<=480]/best[height<=480]"},
	{Label: "Audio only (MP3)", Format: "bestaudio/best", ExtractAudio: true},
}

type Config struct {
	SaveDir          string        `yaml:"save_dir"`
	MaxParallel      int           `yaml:"max_parallel"`
	DefaultPreset    string        `yaml:"default_preset"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	ListenAddr       string        `yaml:"listen_addr"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
	HistoryDB        string        `yaml:"history_db"`
	ProbeLimit       int           `yaml:"probe_limit"`
	ProbeAttempts    int           `yaml:"probe_attempts"`
	OutputTemplate   string        `yaml:"output_template"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	Presets          []Preset      `yaml:"presets"`
}

func LoadConfigFromFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	dec := yaml.NewDecoder(file)
	err = dec.Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	config.Normalize()
	return &config, nil
}

// Normalize fills unset fields with defaults and clamps max_parallel.
func (c *Config) Normalize() {
	if c.SaveDir == "" {
		c.SaveDir = DefaultSaveDir()
	}
	c.MaxParallel = ClampParallel(c.MaxParallel)
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.HistoryDB == "" {
		c.HistoryDB = DefaultHistoryDB
	}
	if c.ProbeLimit < 1 {
		c.ProbeLimit = DefaultProbeLimit
	}
	if c.ProbeAttempts < 1 {
		c.ProbeAttempts = DefaultProbeAttempts
	}
	if c.OutputTemplate == "" {
		c.OutputTemplate = DefaultOutputTemplate
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	if len(c.Presets) == 0 {
		c.Presets = append([]Preset(nil), DefaultPresets...)
	}
	if _, ok := c.Preset(c.DefaultPreset); !ok {
		c.DefaultPreset = c.Presets[0].Label
	}
}

// ClampParallel maps n into [MinParallel, MaxParallel]; zero means the default.
func ClampParallel(n int) int {
	switch {
	case n == 0:
		return DefaultMaxParallel
	case n < MinParallel:
		return MinParallel
	case n > MaxParallel:
		return MaxParallel
	}
	return n
}

// Preset looks a preset up by label. An empty label selects the default.
func (c *Config) Preset(label string) (Preset, bool) {
	if label == "" {
		label = c.DefaultPreset
	}
	for _, p := range c.Presets {
		if p.Label == label {
			return p, true
		}
	}
	return Preset{}, false
}

func DefaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads")
}
