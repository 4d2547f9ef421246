package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "config.yaml"
	DefaultRetryDelay = 6 * time.Hour
)

type Config struct {
	Plex              PlexConfig     `yaml:"plex"`
	TMDB              TMDBConfig     `yaml:"tmdb"`
	Fanart            FanartConfig   `yaml:"fanart"`
	Overlays          OverlayConfig  `yaml:"overlays"`
	Database          DatabaseConfig `yaml:"database"`
	Log               LogConfig      `yaml:"log"`
	PosterPreferences []string       `yaml:"poster_preferences"`
	OutputDirectory   string         `yaml:"outputDirectory"`
	Libraries         []string       `yaml:"libraries"`
	RetryAfterDays    int            `yaml:"retryAfterDays"`
	RetryDelay        time.Duration  `yaml:"retryDelay"`
	RetryLimit        int            `yaml:"retryLimit"`
	RetrySchedule     string         `yaml:"retrySchedule"`
}

type PlexConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type TMDBConfig struct {
	APIKey   string `yaml:"apiKey"`
	Language string `yaml:"language"`
}

type FanartConfig struct {
	APIKey  string `yaml:"api_key"`
	Enabled bool   `yaml:"enabled"`
}

type OverlayConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Path           string  `yaml:"path"`
	PosterFilename string  `yaml:"posterFilename"`
	OutputDir      string  `yaml:"outputDirectory"`
	Position       string  `yaml:"position"`
	Opacity        float64 `yaml:"opacity"`
	Scale          float64 `yaml:"scale"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// WantedType is the poster type every item aims for: the head of the
// preference list.
func (c *Config) WantedType() string {
	if len(c.PosterPreferences) == 0 {
		return "textless"
	}
	return c.PosterPreferences[0]
}

func (c *Config) FanartEnabled() bool {
	return c.Fanart.Enabled && c.Fanart.APIKey != ""
}

func Defaults() *Config {
	return &Config{
		Plex:   PlexConfig{URL: "http://localhost:32400", Timeout: 30 * time.Second},
		TMDB:   TMDBConfig{Language: "en-US"},
		Fanart: FanartConfig{Enabled: true},
		Overlays: OverlayConfig{
			Path:           "overlays",
			PosterFilename: "overlay.png",
			OutputDir:      "output/rendered",
			Position:       "bottom-right",
			Opacity:        1.0,
			Scale:          0.15,
		},
		Database:          DatabaseConfig{Driver: "sqlite", DSN: "data/posteract.sqlite"},
		Log:               LogConfig{Level: "info", Format: "text"},
		PosterPreferences: []string{"textless", "tmdb_en", "tmdb_any"},
		OutputDirectory:   "output/posters",
		RetryAfterDays:    7,
		RetryDelay:        DefaultRetryDelay,
		RetryLimit:        100,
		RetrySchedule:     "0 3 * * *",
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment.
func Load(configFile, envFile string) (*Config, error) {
	cfg := Defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configFile, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", configFile, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Plex.URL = env("PLEX_URL", c.Plex.URL)
	c.Plex.Token = env("PLEX_TOKEN", c.Plex.Token)
	c.Plex.Timeout = envDuration("PLEX_TIMEOUT", c.Plex.Timeout)
	c.TMDB.APIKey = env("TMDB_API_KEY", c.TMDB.APIKey)
	c.TMDB.Language = env("TMDB_LANGUAGE", c.TMDB.Language)
	c.Fanart.APIKey = env("FANART_API_KEY", c.Fanart.APIKey)
	c.Fanart.Enabled = envBool("FANART_ENABLED", c.Fanart.Enabled)

	c.Overlays.Enabled = envBool("OVERLAY_ENABLED", c.Overlays.Enabled)
	c.Overlays.Path = env("OVERLAY_PATH", c.Overlays.Path)
	c.Overlays.PosterFilename = env("OVERLAY_FILENAME", c.Overlays.PosterFilename)
	c.Overlays.OutputDir = env("OVERLAY_OUTPUT_DIR", c.Overlays.OutputDir)
	c.Overlays.Position = env("OVERLAY_POSITION", c.Overlays.Position)
	c.Overlays.Opacity = envFloat("OVERLAY_OPACITY", c.Overlays.Opacity)
	c.Overlays.Scale = envFloat("OVERLAY_SCALE", c.Overlays.Scale)

	c.Database.Driver = env("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = env("DATABASE_URL", c.Database.DSN)

	c.Log.Level = env("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env("LOG_FORMAT", c.Log.Format)
	c.Log.File = env("LOG_FILE", c.Log.File)

	c.PosterPreferences = envList("POSTER_PREFERENCES", c.PosterPreferences)
	c.Libraries = envList("PLEX_LIBRARIES", c.Libraries)
	c.OutputDirectory = env("OUTPUT_DIRECTORY", c.OutputDirectory)
	c.RetryAfterDays = envInt("RETRY_AFTER_DAYS", c.RetryAfterDays)
	c.RetryDelay = envDuration("RETRY_DELAY", c.RetryDelay)
	c.RetryLimit = envInt("RETRY_LIMIT", c.RetryLimit)
	c.RetrySchedule = env("RETRY_SCHEDULE", c.RetrySchedule)
}

func (c *Config) Validate() error {
	if len(c.PosterPreferences) == 0 {
		return errors.New("config: poster_preferences must not be empty")
	}
	if c.RetryAfterDays < 0 {
		return fmt.Errorf("config: retryAfterDays must be >= 0, got %d", c.RetryAfterDays)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("config: retryDelay must be positive, got %s", c.RetryDelay)
	}
	if c.OutputDirectory == "" {
		return errors.New("config: outputDirectory must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma separated list, e.g. POSTER_PREFERENCES=textless,tmdb_en.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
