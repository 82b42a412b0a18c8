// Package config loads application configuration and sets up logging.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"delivery-zoner/internal/database"
	"delivery-zoner/internal/geocoding"
	"delivery-zoner/internal/models"
	"delivery-zoner/internal/zoning"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Geocoding GeocodingConfig `yaml:"geocoding" mapstructure:"geocoding"`
	Zoning    ZoningConfig    `yaml:"zoning" mapstructure:"zoning"`
	Plans     PlansConfig     `yaml:"plans" mapstructure:"plans"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	OpenBrowser bool     `yaml:"open_browser" mapstructure:"open_browser"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodingConfig configures both providers and the lookup cadence.
type GeocodingConfig struct {
	YandexAPIKey     string  `yaml:"yandex_api_key" mapstructure:"yandex_api_key"`
	YandexBaseURL    string  `yaml:"yandex_base_url" mapstructure:"yandex_base_url"`
	NominatimBaseURL string  `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestDelayMS   int     `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CacheEnabled     bool    `yaml:"cache_enabled" mapstructure:"cache_enabled"`
}

// ZoningConfig overrides the engine tuning constants.
type ZoningConfig struct {
	OversizeRatio     float64 `yaml:"oversize_ratio" mapstructure:"oversize_ratio"`
	AdjacencyFactor   float64 `yaml:"adjacency_factor" mapstructure:"adjacency_factor"`
	KmGapThreshold    float64 `yaml:"km_gap_threshold" mapstructure:"km_gap_threshold"`
	MaxDistancePasses int     `yaml:"max_distance_passes" mapstructure:"max_distance_passes"`
	CompactGapTrigger int     `yaml:"compact_gap_trigger" mapstructure:"compact_gap_trigger"`
	AnchorLat         float64 `yaml:"anchor_lat" mapstructure:"anchor_lat"`
	AnchorLng         float64 `yaml:"anchor_lng" mapstructure:"anchor_lng"`
}

// PlansConfig bounds the in-memory plan store.
type PlansConfig struct {
	MaxPlans int `yaml:"max_plans" mapstructure:"max_plans"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, an optional config file and the
// environment. An explicit file must exist; otherwise config.yaml is looked
// up in the working directory and the app directory.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(strings.TrimSuffix(database.ConfigFileName, filepath.Ext(database.ConfigFileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := database.GetAppDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("ZONER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := zoning.DefaultParams()
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.open_browser", false)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("geocoding.yandex_api_key", "")
	v.SetDefault("geocoding.yandex_base_url", geocoding.DefaultYandexURL)
	v.SetDefault("geocoding.nominatim_base_url", geocoding.DefaultNominatimURL)
	v.SetDefault("geocoding.user_agent", geocoding.DefaultUserAgent)
	v.SetDefault("geocoding.request_delay_ms", int(geocoding.DefaultRequestDelay/time.Millisecond))
	v.SetDefault("geocoding.rate_per_sec", 1.0)
	v.SetDefault("geocoding.cache_enabled", true)
	v.SetDefault("zoning.oversize_ratio", defaults.OversizeRatio)
	v.SetDefault("zoning.adjacency_factor", defaults.AdjacencyFactor)
	v.SetDefault("zoning.km_gap_threshold", defaults.KmGapThreshold)
	v.SetDefault("zoning.max_distance_passes", defaults.MaxDistancePasses)
	v.SetDefault("zoning.compact_gap_trigger", defaults.CompactGapTrigger)
	v.SetDefault("zoning.anchor_lat", defaults.Anchor.Lat)
	v.SetDefault("zoning.anchor_lng", defaults.Anchor.Lng)
	v.SetDefault("plans.max_plans", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Geocoding.RatePerSec <= 0 {
		return eris.New("config: geocoding.rate_per_sec must be positive")
	}
	if c.Geocoding.RequestDelayMS < 0 {
		return eris.New("config: geocoding.request_delay_ms must not be negative")
	}
	return nil
}

// SQLitePath returns the configured database file or the app default.
func (c *Config) SQLitePath() (string, error) {
	if c.Store.SQLitePath != "" {
		return c.Store.SQLitePath, nil
	}
	return database.GetDefaultDBPath()
}

// RequestDelay is the pause between consecutive geocoding lookups.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Geocoding.RequestDelayMS) * time.Millisecond
}

// ZoningParams applies the zoning overrides to the default tuning.
func (c *Config) ZoningParams() zoning.Params {
	p := zoning.DefaultParams()
	z := c.Zoning
	if z.OversizeRatio > 0 {
		p.OversizeRatio = z.OversizeRatio
	}
	if z.AdjacencyFactor > 0 {
		p.AdjacencyFactor = z.AdjacencyFactor
	}
	if z.KmGapThreshold > 0 {
		p.KmGapThreshold = z.KmGapThreshold
	}
	if z.MaxDistancePasses > 0 {
		p.MaxDistancePasses = z.MaxDistancePasses
	}
	if z.CompactGapTrigger > 0 {
		p.CompactGapTrigger = z.CompactGapTrigger
	}
	if z.AnchorLat != 0 || z.AnchorLng != 0 {
		p.Anchor = models.Coordinates{Lat: z.AnchorLat, Lng: z.AnchorLng}
	}
	return p
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
