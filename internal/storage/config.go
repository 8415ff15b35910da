package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		NewsPath     string `yaml:"news_path" toml:"news_path"`
		WishlistPath string `yaml:"wishlist_path" toml:"wishlist_path"`
	} `yaml:"database" toml:"database"`

	// Source selects the feed source: "miniflux" or "rss".
	Source string `yaml:"source" toml:"source"`

	Miniflux struct {
		URL   string `yaml:"url" toml:"url"`
		Token string `yaml:"token,omitempty" toml:"token,omitempty"`
	} `yaml:"miniflux" toml:"miniflux"`

	RSS struct {
		Feeds []string `yaml:"feeds" toml:"feeds"`
	} `yaml:"rss" toml:"rss"`

	Channel struct {
		WebhookURL string `yaml:"webhook_url,omitempty" toml:"webhook_url,omitempty"`
	} `yaml:"channel" toml:"channel"`

	IGDB struct {
		ClientID     string `yaml:"client_id,omitempty" toml:"client_id,omitempty"`
		ClientSecret string `yaml:"client_secret,omitempty" toml:"client_secret,omitempty"`
		BaseURL      string `yaml:"base_url" toml:"base_url"`
		TokenURL     string `yaml:"token_url" toml:"token_url"`
	} `yaml:"igdb" toml:"igdb"`

	Bot struct {
		OwnerID string `yaml:"owner_id" toml:"owner_id"`
	} `yaml:"bot" toml:"bot"`

	API struct {
		Listen    string `yaml:"listen" toml:"listen"`
		JWTSecret string `yaml:"jwt_secret,omitempty" toml:"jwt_secret,omitempty"`
	} `yaml:"api" toml:"api"`

	Poller struct {
		BatchSize      int           `yaml:"batch_size" toml:"batch_size"`
		ActiveInterval time.Duration `yaml:"active_interval" toml:"active_interval"`
		IdleInterval   time.Duration `yaml:"idle_interval" toml:"idle_interval"`
		ErrorBackoff   time.Duration `yaml:"error_backoff" toml:"error_backoff"`
		PostDelay      time.Duration `yaml:"post_delay" toml:"post_delay"`
	} `yaml:"poller" toml:"poller"`

	Refresh struct {
		Interval time.Duration `yaml:"interval" toml:"interval"`
	} `yaml:"refresh" toml:"refresh"`

	Views struct {
		PageSize int           `yaml:"page_size" toml:"page_size"`
		Timeout  time.Duration `yaml:"timeout" toml:"timeout"`
	} `yaml:"views" toml:"views"`

	Log struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"log" toml:"log"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.NewsPath = "./news.db"
	cfg.Database.WishlistPath = "./wishlist.db"
	cfg.Source = "miniflux"
	cfg.Miniflux.URL = "http://localhost:8080"
	cfg.IGDB.BaseURL = "https://api.igdb.com/v4"
	cfg.IGDB.TokenURL = "https://id.twitch.tv/oauth2/token"
	cfg.API.Listen = "127.0.0.1:8484"
	cfg.Poller.BatchSize = 5
	cfg.Poller.ActiveInterval = 30 * time.Second
	cfg.Poller.IdleInterval = 60 * time.Second
	cfg.Poller.ErrorBackoff = 60 * time.Second
	cfg.Poller.PostDelay = 2 * time.Second
	cfg.Refresh.Interval = 24 * time.Hour
	cfg.Views.PageSize = 10
	cfg.Views.Timeout = 300 * time.Second
	cfg.Log.Level = "info"
	return cfg
}

// LoadConfig reads a YAML or TOML file (chosen by extension) over the
// defaults and then applies environment overrides. A missing file is not
// an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := cfg.decode(path, data); err != nil {
				return nil, err
			}
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return nil
}

// ApplyEnv overlays secrets and deployment settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("MINIFLUX_API_URL", &c.Miniflux.URL)
	set("MINIFLUX_API_TOKEN", &c.Miniflux.Token)
	set("DISCORD_WEBHOOK_URL", &c.Channel.WebhookURL)
	set("IGDB_CLIENT_ID", &c.IGDB.ClientID)
	set("IGDB_CLIENT_SECRET", &c.IGDB.ClientSecret)
	set("BOT_OWNER_ID", &c.Bot.OwnerID)
	set("COURIER_JWT_SECRET", &c.API.JWTSecret)
	set("COURIER_LOG_LEVEL", &c.Log.Level)
}

// Write serializes the config to path, in TOML when the extension is
// .toml and YAML otherwise.
func (c *Config) Write(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(path)) == ".toml" {
		if err := toml.NewEncoder(f).Encode(c); err != nil {
			return fmt.Errorf("failed to encode TOML config: %w", err)
		}
		return nil
	}
	enc := yaml.NewEncoder(f)
	defer enc.Close()
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode YAML config: %w", err)
	}
	return nil
}
