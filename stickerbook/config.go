package stickerbook

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/stickerbook/manager/stickerbook/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log   LogConfig         `toml:"log"`
	DB    database.DBConfig `toml:"db"`
	Store StoreConfig       `toml:"store"`
	User  UserConfig        `toml:"user"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// StoreConfig locates the local mirror directory shared by all running
// instances on the machine.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// UserConfig identifies the collector whose stats are maintained.
type UserConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

func (c *Config) applyDefaults() {
	if c.Store.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Store.Dir = filepath.Join(home, ".stickerbook")
	}
	if c.User.ID == "" {
		c.User.ID = "local"
	}
	if c.User.Name == "" {
		c.User.Name = "Collector"
	}
}
