// Package config loads server configuration using viper from an optional
// config.yaml with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Rooms   RoomsConfig   `mapstructure:"rooms"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the HTTP and websocket settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	WebDir          string        `mapstructure:"web_dir"`
}

// RoomsConfig holds room settings.
type RoomsConfig struct {
	MaxPlayers int `mapstructure:"max_players"`
}

// StorageConfig holds the history database settings.
type StorageConfig struct {
	Path   string `mapstructure:"path"`
	Buffer int    `mapstructure:"buffer"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Load reads configuration from config.yaml in configPath (optional) and
// environment variables, e.g. SERVER_PORT, ROOMS_MAX_PLAYERS, STORAGE_PATH.
// PORT is honored as an alias of SERVER_PORT.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind port env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ping_interval", "30s")
	v.SetDefault("server.send_buffer", 64)
	v.SetDefault("server.read_limit", 4096)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.web_dir", "")

	v.SetDefault("rooms.max_players", 2)

	v.SetDefault("storage.path", ":memory:")
	v.SetDefault("storage.buffer", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Rooms.MaxPlayers < 2 {
		return fmt.Errorf("rooms.max_players must be at least 2, got %d", c.Rooms.MaxPlayers)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
