package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scratchcard/internal/scratch"
	"scratchcard/pkg/realtime"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig  `mapstructure:"server"`
	Card        CardConfig    `mapstructure:"card"`
	Session     SessionConfig `mapstructure:"session"`
	CatalogPath string        `mapstructure:"catalog"`
	Debug       bool          `mapstructure:"debug"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// CardConfig holds the parameters every new card is built with
type CardConfig struct {
	Width           int     `mapstructure:"width"`
	Height          int     `mapstructure:"height"`
	BrushRadius     float64 `mapstructure:"brush_radius"`
	RevealThreshold float64 `mapstructure:"reveal_threshold"`
	EraseMode       string  `mapstructure:"erase_mode"`
	MaxPixelRatio   float64 `mapstructure:"max_pixel_ratio"`
}

// SessionConfig holds per-card timers
type SessionConfig struct {
	FadeAfter time.Duration `mapstructure:"fade_after"`
	IdleTTL   time.Duration `mapstructure:"idle_ttl"`
}

// Load reads .env, an optional config.yaml and SCRATCH_* environment
// variables, in increasing priority. PORT and BASE_URL are honoured as well.
func Load(searchPaths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "./config"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("SCRATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	_ = v.BindEnv("server.port", "SCRATCH_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.base_url", "SCRATCH_SERVER_BASE_URL", "BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.Port = strings.TrimSpace(cfg.Server.Port)
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "")
	v.SetDefault("card.width", scratch.DefaultWidth)
	v.SetDefault("card.height", scratch.DefaultHeight)
	v.SetDefault("card.brush_radius", scratch.DefaultBrushRadius)
	v.SetDefault("card.reveal_threshold", scratch.DefaultRevealThreshold)
	v.SetDefault("card.erase_mode", string(scratch.EraseLine))
	v.SetDefault("card.max_pixel_ratio", 3)
	v.SetDefault("session.fade_after", realtime.DefaultFadeAfter)
	v.SetDefault("session.idle_ttl", realtime.DefaultIdleTTL)
	v.SetDefault("catalog", "")
	v.SetDefault("debug", false)
}

// Validate checks that a card can be built at every allowed pixel ratio.
func (c *Config) Validate() error {
	if c.Card.MaxPixelRatio < 1 {
		return fmt.Errorf("%w: max pixel ratio %v", scratch.ErrInvalidConfig, c.Card.MaxPixelRatio)
	}
	if _, err := c.Card.Scratch(1); err != nil {
		return err
	}
	if c.Session.FadeAfter < 0 || c.Session.IdleTTL < 0 {
		return errors.New("session timers must not be negative")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// Scratch builds the engine config for a device with the given pixel ratio,
// clamped to [1, MaxPixelRatio].
func (c CardConfig) Scratch(pixelRatio float64) (scratch.Config, error) {
	mode, err := scratch.ParseEraseMode(c.EraseMode)
	if err != nil {
		return scratch.Config{}, err
	}
	cfg := scratch.Config{
		Width:           c.Width,
		Height:          c.Height,
		BrushRadius:     c.BrushRadius,
		RevealThreshold: c.RevealThreshold,
		EraseMode:       mode,
		PixelRatio:      ClampPixelRatio(pixelRatio, c.MaxPixelRatio),
	}
	return cfg, cfg.Validate()
}

// ClampPixelRatio maps NaN and values below 1 to 1 and caps at limit.
func ClampPixelRatio(ratio, limit float64) float64 {
	if math.IsNaN(ratio) || ratio < 1 {
		return 1
	}
	if limit >= 1 && ratio > limit {
		return limit
	}
	return ratio
}
