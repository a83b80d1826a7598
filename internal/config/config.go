// Package config provides Viper-based configuration loading for the session broker.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds websocket server settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/websocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP/websocket listener.
	Port int `mapstructure:"port"`
	// WriteTimeout is the per-frame write deadline for websocket connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is the duration without a pong after which a connection is dropped.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// PingInterval is how often keepalive pings are sent. Must be shorter than PongTimeout.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// MaxMessageBytes is the maximum inbound frame size accepted from a client.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	// SendBuffer is the per-connection outbound message buffer size.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BrokerConfig holds session broker settings.
type BrokerConfig struct {
	// CodeLength is the length of generated session codes.
	CodeLength int `mapstructure:"code_length"`
	// CodeRetries is how many times code generation is retried on a registry collision.
	CodeRetries int `mapstructure:"code_retries"`
	// Game is the catalog ID of the game served by this broker instance.
	Game string `mapstructure:"game"`
}

// GamesConfig holds game catalog settings.
type GamesConfig struct {
	// Dir is the directory of game definition YAML files.
	Dir string `mapstructure:"dir"`
	// InstructionLimit caps Lua opcodes per rules-engine call; 0 uses the engine default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Games   GamesConfig   `mapstructure:"games"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBroker(c.Broker); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGames(c.Games); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if s.PongTimeout <= 0 {
		errs = append(errs, "server.pong_timeout must be positive")
	}
	if s.PingInterval <= 0 {
		errs = append(errs, "server.ping_interval must be positive")
	}
	if s.PingInterval > 0 && s.PongTimeout > 0 && s.PingInterval >= s.PongTimeout {
		errs = append(errs, "server.ping_interval must be shorter than server.pong_timeout")
	}
	if s.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Sprintf("server.max_message_bytes must be >= 1, got %d", s.MaxMessageBytes))
	}
	if s.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("server.send_buffer must be >= 1, got %d", s.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBroker(b BrokerConfig) error {
	var errs []string
	if b.CodeLength < 3 || b.CodeLength > 12 {
		errs = append(errs, fmt.Sprintf("broker.code_length must be 3-12, got %d", b.CodeLength))
	}
	if b.CodeRetries < 1 {
		errs = append(errs, fmt.Sprintf("broker.code_retries must be >= 1, got %d", b.CodeRetries))
	}
	if b.Game == "" {
		errs = append(errs, "broker.game must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGames(g GamesConfig) error {
	var errs []string
	if g.Dir == "" {
		errs = append(errs, "games.dir must not be empty")
	}
	if g.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("games.instruction_limit must be >= 0, got %d", g.InstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with PARLOR_ prefix
	v.SetEnvPrefix("PARLOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.pong_timeout", "60s")
	v.SetDefault("server.ping_interval", "54s")
	v.SetDefault("server.max_message_bytes", 65536)
	v.SetDefault("server.send_buffer", 64)

	v.SetDefault("broker.code_length", 4)
	v.SetDefault("broker.code_retries", 5)
	v.SetDefault("broker.game", "tictactoe")

	v.SetDefault("games.dir", "content/games")
	v.SetDefault("games.instruction_limit", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
