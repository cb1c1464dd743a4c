// Package config provides YAML-based configuration loading for netsys nodes.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the node/application
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Net holds transport, server and client options
    Net NetConfig `mapstructure:"net"`

    // Telemetry controls bandwidth sampling output
    Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options.
    // It also turns channel assertions into panics.
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// TelemetryConfig controls the bandwidth monitor sink.
type TelemetryConfig struct {
    Enable     bool `mapstructure:"enable"`
    IntervalMS int  `mapstructure:"interval_ms"`
    // LogSamples writes every published sample at debug level.
    LogSamples bool `mapstructure:"log_samples"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "netsys-node",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/netsys.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Net: NetConfig{
            Transport:     "quic",
            BindHost:      "0.0.0.0",
            Server:        ServerConfig{Enable: true, Port: 7000, MaxClients: 32},
            ClientPeers:   64,
            MaxFrameBytes: 1024,
            TickMS:        10,
            IdleTimeoutMS: 30000,
            KeepAliveMS:   5000,
        },
        Telemetry: TelemetryConfig{Enable: true, IntervalMS: 1000},
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix NETSYS and `.`/`-` are replaced with `_`.
// Example: NETSYS_NET_SERVER_PORT=7001
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("NETSYS")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    // Net defaults
    v.SetDefault("net.transport", cfg.Net.Transport)
    v.SetDefault("net.bind_host", cfg.Net.BindHost)
    v.SetDefault("net.server.enable", cfg.Net.Server.Enable)
    v.SetDefault("net.server.port", cfg.Net.Server.Port)
    v.SetDefault("net.server.max_clients", cfg.Net.Server.MaxClients)
    v.SetDefault("net.client_peers", cfg.Net.ClientPeers)
    v.SetDefault("net.max_frame_bytes", cfg.Net.MaxFrameBytes)
    v.SetDefault("net.tick_ms", cfg.Net.TickMS)
    v.SetDefault("net.idle_timeout_ms", cfg.Net.IdleTimeoutMS)
    v.SetDefault("net.keepalive_ms", cfg.Net.KeepAliveMS)
    v.SetDefault("net.connect", cfg.Net.Connect)
    // Telemetry defaults
    v.SetDefault("telemetry.enable", cfg.Telemetry.Enable)
    v.SetDefault("telemetry.interval_ms", cfg.Telemetry.IntervalMS)
    v.SetDefault("telemetry.log_samples", cfg.Telemetry.LogSamples)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("NETSYS_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `netsys`
        v.SetConfigName("netsys")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".netsys"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    if c.Telemetry.IntervalMS <= 0 {
        c.Telemetry.IntervalMS = 1000
    }
    return c.Net.validate()
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
