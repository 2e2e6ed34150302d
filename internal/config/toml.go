// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server   ServerConfig   `toml:"server"`
	Practice PracticeConfig `toml:"practice"`
	Camera   CameraConfig   `toml:"camera"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// ServerConfig maps prediction service settings.
type ServerConfig struct {
	URL *string `toml:"url"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Mode             *string           `toml:"mode"`
	Category         *string           `toml:"category"`
	FocusWeak        *bool             `toml:"focus-weak"`
	WeakTop          *int              `toml:"weak-top"`
	WeakFactor       *float64          `toml:"weak-factor"`
	WeakWindow       *int              `toml:"weak-window"`
	MasteryThreshold *float64          `toml:"mastery-threshold"`
	WordLists        map[string]string `toml:"word-lists"`
}

// CameraConfig maps capture device settings.
type CameraConfig struct {
	Source    *string `toml:"source"`
	Device    *string `toml:"device"`
	FramesDir *string `toml:"frames-dir"`
	Width     *int    `toml:"width"`
	Height    *int    `toml:"height"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// MetricsConfig maps the optional Prometheus listener.
type MetricsConfig struct {
	Addr *string `toml:"addr"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
