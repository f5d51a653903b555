package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "levelkeep"

type Config struct {
	LevelRoot string         `mapstructure:"level_root" yaml:"level_root"`
	GameRoot  string         `mapstructure:"game_root" yaml:"game_root"`
	Workers   int            `mapstructure:"workers" yaml:"workers"`
	Catalog   CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Download  DownloadConfig `mapstructure:"download" yaml:"download"`
	Extract   ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	Runner    RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Log       LogConfig      `mapstructure:"log" yaml:"log"`

	Port string `mapstructure:"port" yaml:"port"`
}

type CatalogConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	File        string `mapstructure:"file" yaml:"file"`
}

type DownloadConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	// RateLimit caps download throughput in bytes per second; 0 is unlimited
	RateLimit int64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

type ExtractConfig struct {
	// TickBudget is how many progress ticks one extraction reports
	TickBudget int `mapstructure:"tick_budget" yaml:"tick_budget"`
}

type RunnerConfig struct {
	WineBinary string `mapstructure:"wine_binary" yaml:"wine_binary"`
	Prefix     string `mapstructure:"prefix" yaml:"prefix"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

// Load reads the config file at path. An empty path searches the XDG
// config dirs for levelkeep/config.yaml and falls back to defaults when
// nothing is found.
func Load(path string) (*Config, error) {
	v := viper.New()

	dataDir := filepath.Join(xdg.DataHome, appName)

	// Set Defaults
	v.SetDefault("level_root", filepath.Join(dataDir, "levels"))
	v.SetDefault("game_root", filepath.Join(dataDir, "game"))
	v.SetDefault("workers", 4)
	v.SetDefault("port", "8080")
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.sqlite_path", filepath.Join(dataDir, "catalog.db"))
	v.SetDefault("catalog.postgres_dsn", "")
	v.SetDefault("catalog.file", "")
	v.SetDefault("download.timeout", "10m")
	v.SetDefault("download.user_agent", appName)
	v.SetDefault("download.rate_limit", 0)
	v.SetDefault("extract.tick_budget", 50)
	v.SetDefault("runner.wine_binary", "wine")
	v.SetDefault("runner.prefix", "")
	v.SetDefault("log.path", filepath.Join(xdg.StateHome, appName, appName+".log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	if path == "" {
		if found, err := xdg.SearchConfigFile(filepath.Join(appName, "config.yaml")); err == nil {
			path = found
		}
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("LEVELKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LevelRoot == "" || c.GameRoot == "" {
		return errors.New("level_root and game_root are required")
	}

	if filepath.Clean(c.LevelRoot) == filepath.Clean(c.GameRoot) {
		return errors.New("level_root and game_root must be different directories")
	}

	if c.Workers <= 0 {
		// Default to a sane value
		c.Workers = 4
	}

	switch c.Catalog.Driver {
	case "sqlite":
		if c.Catalog.SQLitePath == "" {
			return errors.New("catalog: sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Catalog.PostgresDSN == "" {
			return errors.New("catalog: postgres_dsn is required for the postgres driver")
		}
	case "file":
		if c.Catalog.File == "" {
			return errors.New("catalog: file is required for the file driver")
		}
	default:
		return fmt.Errorf("catalog: unknown driver %q", c.Catalog.Driver)
	}

	if c.Download.Timeout <= 0 {
		c.Download.Timeout = 10 * time.Minute
	}

	if c.Extract.TickBudget <= 0 {
		return errors.New("extract: tick_budget must be positive")
	}

	if c.Download.RateLimit < 0 {
		return errors.New("download: rate_limit cannot be negative")
	}

	return nil
}
