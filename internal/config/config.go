// Package config loads settings from defaults, an optional YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides: KINDLENOTES_STUDY_SESSIONSIZE
// sets study.sessionsize.
const EnvPrefix = "KINDLENOTES_"

type Config struct {
	Library LibraryConfig `koanf:"library"`
	Store   StoreConfig   `koanf:"store"`
	Study   StudyConfig   `koanf:"study"`
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Import  ImportConfig  `koanf:"import"`
}

type LibraryConfig struct {
	Dir    string `koanf:"dir" validate:"required"`
	Remote string `koanf:"remote"`
	Commit bool   `koanf:"commit"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=json sqlite"`
	// Path defaults to a file under <library.dir>/.kindlenotes.
	Path string `koanf:"path" validate:"required"`
}

type StudyConfig struct {
	SessionSize int           `koanf:"sessionsize" validate:"gte=1"`
	StaleAfter  time.Duration `koanf:"staleafter" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ImportConfig struct {
	File string `koanf:"file"`
}

func defaults() map[string]any {
	dir := "flashcards"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, "flashcards")
	}
	return map[string]any{
		"library.dir":       dir,
		"library.remote":    "",
		"library.commit":    false,
		"store.driver":      "json",
		"store.path":        "",
		"study.sessionsize": 10,
		"study.staleafter":  "24h",
		"server.addr":       "127.0.0.1:8080",
		"log.level":         "info",
		"log.format":        "text",
		"import.file":       "",
	}
}

// DefaultFile returns the config file read when none is given explicitly.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kindlenotes", "config.yaml")
}

// Load builds the configuration. An explicit path must exist; otherwise
// DefaultFile is read when present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile()
	}
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Store.Path == "" {
		name := "store.json"
		if cfg.Store.Driver == "sqlite" {
			name = "store.db"
		}
		cfg.Store.Path = filepath.Join(cfg.Library.Dir, ".kindlenotes", name)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
