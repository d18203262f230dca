// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	PK      PKConfig      `toml:"pk"`
	Plan    PlanConfig    `toml:"plan"`
	Plot    PlotConfig    `toml:"plot"`
	History HistoryConfig `toml:"history"`
}

// PKConfig maps pharmacokinetic settings.
type PKConfig struct {
	AbsorptionHalfLife  *float64 `toml:"absorption-half-life"`
	EliminationHalfLife *float64 `toml:"elimination-half-life"`
	Metabolism          *string  `toml:"metabolism"`
}

// PlanConfig maps planning targets and window.
type PlanConfig struct {
	Max   *float64 `toml:"max"`
	Min   *float64 `toml:"min"`
	Start *string  `toml:"start"`
	End   *string  `toml:"end"`
	Sleep *string  `toml:"sleep"`
}

// PlotConfig maps chart settings.
type PlotConfig struct {
	Height *int  `toml:"height"`
	Color  *bool `toml:"color"`
}

// HistoryConfig maps plan history settings.
type HistoryConfig struct {
	Enabled *bool `toml:"enabled"`
}

// Metabolism presets for the elimination half-life in hours.
var metabolismHalfLives = map[string]float64{
	"normal": 5.0,
	"fast":   3.0,
	"slow":   8.0,
}

// MetabolismHalfLife resolves a metabolism preset to an elimination
// half-life.
func MetabolismHalfLife(name string) (float64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if v, ok := metabolismHalfLives[key]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown metabolism %q (expected normal, fast or slow)", name)
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
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if cfg.PK.Metabolism != nil {
		if _, err := MetabolismHalfLife(*cfg.PK.Metabolism); err != nil {
			return FileConfig{}, err
		}
	}
	return cfg, nil
}
