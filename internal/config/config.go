package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Twitch  []TwitchSource  `toml:"twitch"`
	YouTube []YouTubeSource `toml:"youtube"`
	Sink    SinkConfig      `toml:"sink"`
}

type TwitchSource struct {
	Channel string `toml:"channel"`
}

// YouTubeSource names one stream by video id, watch URL, channel id, or
// @handle. Mode is "auto", "live", or "replay".
type YouTubeSource struct {
	ID   string `toml:"id"`
	Mode string `toml:"mode"`
}

type SinkConfig struct {
	URL string `toml:"url"`
}

// Load reads and decodes a TOML config file from the given path.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults sets default values for fields that have them.
func (c *Config) ApplyDefaults() {
	for i := range c.YouTube {
		if c.YouTube[i].Mode == "" {
			c.YouTube[i].Mode = "auto"
		}
	}
}

// Validate rejects configs that could not produce a working session.
func (c *Config) Validate() error {
	if len(c.Twitch) == 0 && len(c.YouTube) == 0 {
		return fmt.Errorf("no sources configured")
	}
	for _, tw := range c.Twitch {
		if tw.Channel == "" {
			return fmt.Errorf("twitch source with empty channel")
		}
	}
	for _, yt := range c.YouTube {
		if yt.ID == "" {
			return fmt.Errorf("youtube source with empty id")
		}
		switch yt.Mode {
		case "auto", "live", "replay":
		default:
			return fmt.Errorf("youtube source %q: unknown mode %q", yt.ID, yt.Mode)
		}
	}
	return nil
}
