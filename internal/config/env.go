// Package config provides environment overrides.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds LIPLEARN_* overrides. Unset variables leave fields nil.
type EnvConfig struct {
	ServerURL        *string  `envconfig:"SERVER_URL"`
	Mode             *string  `envconfig:"MODE"`
	Category         *string  `envconfig:"CATEGORY"`
	CameraSource     *string  `envconfig:"CAMERA"`
	Device           *string  `envconfig:"DEVICE"`
	FramesDir        *string  `envconfig:"FRAMES_DIR"`
	MasteryThreshold *float64 `envconfig:"MASTERY_THRESHOLD"`
	LogLevel         *string  `envconfig:"LOG_LEVEL"`
	MetricsAddr      *string  `envconfig:"METRICS_ADDR"`
}

// LoadEnv loads a .env file when present, then reads LIPLEARN_* variables.
func LoadEnv() (EnvConfig, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	var env EnvConfig
	if err := envconfig.Process("liplearn", &env); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to load environment: %w", err)
	}
	return env, nil
}

// Overlay copies every env value that is set onto the file config, so env wins over the file.
func (e EnvConfig) Overlay(fc FileConfig) FileConfig {
	pick := func(dst **string, v *string) {
		if v != nil {
			*dst = v
		}
	}
	pick(&fc.Server.URL, e.ServerURL)
	pick(&fc.Practice.Mode, e.Mode)
	pick(&fc.Practice.Category, e.Category)
	pick(&fc.Camera.Source, e.CameraSource)
	pick(&fc.Camera.Device, e.Device)
	pick(&fc.Camera.FramesDir, e.FramesDir)
	pick(&fc.Log.Level, e.LogLevel)
	pick(&fc.Metrics.Addr, e.MetricsAddr)
	if e.MasteryThreshold != nil {
		fc.Practice.MasteryThreshold = e.MasteryThreshold
	}
	return fc
}
