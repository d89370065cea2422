// Package config loads tockboot settings from a TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the settings shared by every tockboot command.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	Retries     int
	Verify      bool
	LogLevel    string
	Address     uint32
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Port:        "/dev/ttyUSB0",
		Baud:        115200,
		ReadTimeout: time.Second,
		Retries:     3,
		Verify:      true,
		LogLevel:    "info",
		Address:     0x30000,
	}
}

type fileConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	ReadTimeout string `toml:"read_timeout"`
	Retries     int    `toml:"retries"`
	Verify      bool   `toml:"verify"`
	LogLevel    string `toml:"log_level"`
	Address     int64  `toml:"address"`
}

// Load overlays the keys defined in the file at path onto Default.
// An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}

	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return Config{}, fmt.Errorf("baud must be positive, got %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}

	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}

	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}

	if meta.IsDefined("verify") {
		cfg.Verify = raw.Verify
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("address") {
		if raw.Address < 0 || raw.Address > 0xFFFFFFFF {
			return Config{}, fmt.Errorf("address 0x%X out of range", raw.Address)
		}
		cfg.Address = uint32(raw.Address)
	}

	return cfg, nil
}
