package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/SloeberX/auction-tracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Poll      PollConfig      `mapstructure:"poll"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP/websocket listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig locates the data directory and tunes backups.
type StorageConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	BackupInterval  time.Duration `mapstructure:"backup_interval"`
	BackupRetention time.Duration `mapstructure:"backup_retention"`
}

// ScrapeConfig points at the headless extractor sidecar.
type ScrapeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PollConfig governs per-listing polling cadence.
type PollConfig struct {
	DefaultInterval time.Duration `mapstructure:"default_interval"`
	FastInterval    time.Duration `mapstructure:"fast_interval"`
	FastWindow      time.Duration `mapstructure:"fast_window"`
}

// ReconcileConfig tunes the bid matching windows.
type ReconcileConfig struct {
	MatchWindowPrecise time.Duration `mapstructure:"match_window_precise"`
	MatchWindowCoarse  time.Duration `mapstructure:"match_window_coarse"`
}

// NotifyConfig 描述告警输送参数。运行时可调的开关（webhook、ping 规则、
// 编辑节流）保存在数据目录的 settings.json 中，可经 API 热更新。
type NotifyConfig struct {
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	ClosingPingCooldown time.Duration `mapstructure:"closing_ping_cooldown"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUCTIONTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auctiontracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":3000")

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.backup_interval", "6h")
	v.SetDefault("storage.backup_retention", "720h")

	v.SetDefault("scrape.request_timeout", "60s")
	v.SetDefault("scrape.user_agent", "auctiontracker/1.0")

	v.SetDefault("poll.default_interval", "37s")
	v.SetDefault("poll.fast_interval", "7s")
	v.SetDefault("poll.fast_window", "30m")

	v.SetDefault("reconcile.match_window_precise", "10m")
	v.SetDefault("reconcile.match_window_coarse", "336h")

	v.SetDefault("notify.request_timeout", "10s")
	v.SetDefault("notify.closing_ping_cooldown", "60s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Poll.DefaultInterval <= 0 {
		return fmt.Errorf("poll.default_interval must be greater than zero")
	}
	if c.Poll.FastInterval <= 0 {
		return fmt.Errorf("poll.fast_interval must be greater than zero")
	}
	if c.Poll.FastWindow <= 0 {
		return fmt.Errorf("poll.fast_window must be greater than zero")
	}
	if c.Reconcile.MatchWindowPrecise <= 0 {
		return fmt.Errorf("reconcile.match_window_precise must be greater than zero")
	}
	if c.Reconcile.MatchWindowCoarse < c.Reconcile.MatchWindowPrecise {
		return fmt.Errorf("reconcile.match_window_coarse must not be smaller than the precise window")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
