package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/dkeye/RoomStatus/internal/domain"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	StaticPath     string        `mapstructure:"static_path"`
	TemplatePath   string        `mapstructure:"template_path"`
	AccessKey      string        `mapstructure:"access_key"`
	StatusEncoding string        `mapstructure:"status_encoding"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	AuthFailLimit  int           `mapstructure:"auth_fail_limit"`
	AuthFailWindow time.Duration `mapstructure:"auth_fail_window"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
}

// Encoding returns the parsed status encoding. Load has already validated it.
func (c *Config) Encoding() domain.Encoding {
	enc, _ := domain.ParseEncoding(c.StatusEncoding)
	return enc
}

var keys = []string{
	"mode", "port", "log_level", "static_path", "template_path", "access_key",
	"status_encoding", "webhook_url", "webhook_timeout", "auth_fail_limit",
	"auth_fail_window", "ping_period",
}

// Load reads .env, the optional config/config.<CONFIG_ENV>.yaml file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := gotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("template_path", "")
	v.SetDefault("access_key", "")
	v.SetDefault("status_encoding", string(domain.EncodingBool))
	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_timeout", "5s")
	v.SetDefault("auth_fail_limit", 0)
	v.SetDefault("auth_fail_window", "1m")
	v.SetDefault("ping_period", "54s")

	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Info().Err(err).Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.AccessKey == "" {
		log.Warn().Str("module", "config").Msg("ACCESS_KEY is empty, every status change will be rejected")
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("encoding", cfg.StatusEncoding).
		Bool("webhook", cfg.WebhookURL != "").
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := domain.ParseEncoding(c.StatusEncoding); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid config: port %d out of range", c.Port)
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("invalid config: webhook_timeout must be positive")
	}
	return nil
}
