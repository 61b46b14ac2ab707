package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir    string
	NotesDir   string
	TagsDir    string
	Editor     string
	SearchMode string
	Socket     string // host transport; empty means none
	LogLevel   string
	File       string // config file actually read, if any
}

// Load reads configuration from file and env. Env var overrides use prefix
// CANOPY_ (CANOPY_DATA_DIR, CANOPY_SEARCH_MODE, ...). CANOPY_CONFIG points at
// an explicit config file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("notes_dir", "")
	v.SetDefault("tags_dir", "")
	v.SetDefault("editor", defaultEditor())
	v.SetDefault("search.mode", "tokens")
	v.SetDefault("transport.socket", "")
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")
	if path := os.Getenv("CANOPY_CONFIG"); path != "" {
		p, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("config: expand %s: %w", path, err)
		}
		v.SetConfigFile(p)
	} else {
		v.AddConfigPath(filepath.Join(xdgConfig(), "canopy"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CANOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{
		Editor:     v.GetString("editor"),
		SearchMode: strings.ToLower(v.GetString("search.mode")),
		LogLevel:   v.GetString("log.level"),
		File:       v.ConfigFileUsed(),
	}

	var err error
	if cfg.DataDir, err = homedir.Expand(v.GetString("data_dir")); err != nil {
		return nil, fmt.Errorf("config: expand data_dir: %w", err)
	}
	cfg.NotesDir = v.GetString("notes_dir")
	if cfg.NotesDir == "" {
		cfg.NotesDir = filepath.Join(cfg.DataDir, "notes")
	}
	if cfg.NotesDir, err = homedir.Expand(cfg.NotesDir); err != nil {
		return nil, fmt.Errorf("config: expand notes_dir: %w", err)
	}
	cfg.TagsDir = v.GetString("tags_dir")
	if cfg.TagsDir == "" {
		cfg.TagsDir = filepath.Join(cfg.DataDir, "tags")
	}
	if cfg.TagsDir, err = homedir.Expand(cfg.TagsDir); err != nil {
		return nil, fmt.Errorf("config: expand tags_dir: %w", err)
	}
	if s := v.GetString("transport.socket"); s != "" {
		if cfg.Socket, err = homedir.Expand(s); err != nil {
			return nil, fmt.Errorf("config: expand transport.socket: %w", err)
		}
	}

	for _, dir := range []string{cfg.DataDir, cfg.NotesDir, cfg.TagsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return cfg, nil
}

// Level maps LogLevel onto slog. Unknown values mean info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SettingsFile is where user-facing settings are persisted.
func (c *Config) SettingsFile() string {
	return filepath.Join(c.DataDir, "settings.yaml")
}

// LogFile is where the TUI writes its log, since it owns the terminal.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "canopy.log")
}

// AccountDir holds the local account and session files.
func (c *Config) AccountDir() string {
	return filepath.Join(c.DataDir, "account")
}

func xdgConfig() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return d
	}
	home, _ := homedir.Dir()
	return filepath.Join(home, ".config")
}

func defaultDataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "canopy")
	}
	home, _ := homedir.Dir()
	return filepath.Join(home, ".local", "share", "canopy")
}

func defaultEditor() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	if e := os.Getenv("VISUAL"); e != "" {
		return e
	}
	return "vim"
}
