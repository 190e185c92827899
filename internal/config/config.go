package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings shared by the editor core:
// canvas geometry, playback rate, encoder selection and asset folders.
type Config struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	FPS          int    `yaml:"fps"`
	Preset       string `yaml:"preset"`
	VideoEncoder string `yaml:"video_encoder"`
	Quality      int    `yaml:"quality"`
	AudioDir     string `yaml:"audio_dir"`
	ImageDir     string `yaml:"image_dir"`
	OutputDir    string `yaml:"output_dir"`

	// FlushTimeoutSec bounds how long stopping a live recording may wait
	// for the encoder to drain before the session is declared failed.
	FlushTimeoutSec float64 `yaml:"flush_timeout_sec"`
}

func Default() *Config {
	return &Config{
		Width:           800,
		Height:          600,
		FPS:             12,
		VideoEncoder:    "libx264",
		Quality:         23,
		AudioDir:        "input/audio",
		ImageDir:        "input/images",
		OutputDir:       "output",
		FlushTimeoutSec: 10,
	}
}

// ApplyPreset overrides Width/Height for the known aspect presets.
// Unknown presets leave the configured size untouched.
func (c *Config) ApplyPreset() {
	switch c.Preset {
	case "16:9":
		c.Width, c.Height = 1280, 720
	case "9:16":
		c.Width, c.Height = 720, 1280
	case "4:5":
		c.Width, c.Height = 1080, 1350
	}
}

func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	return nil
}

// Load reads a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyPreset()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
