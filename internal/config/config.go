package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (CHATPSY_SERVER_PORT).
const EnvPrefix = "CHATPSY"

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// Watch starts watching the configuration file for changes. The callback
// receives every valid reloaded configuration; invalid edits are reported
// through onError and otherwise ignored.
func Watch(configPath string, callback func(*Config), onError func(error)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		callback(cfg)
	})
	v.WatchConfig()

	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/chatpsy/")
	v.AddConfigPath("$HOME/.chatpsy/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, GetDefaults())

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := GetDefaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("privacy.whole_word_sweep", d.Privacy.WholeWordSweep)

	v.SetDefault("ingest.allowed_extensions", d.Ingest.AllowedExtensions)
	v.SetDefault("ingest.max_upload_size", d.Ingest.MaxUploadSize)
	v.SetDefault("ingest.max_archive_entries", d.Ingest.MaxArchiveEntries)
	v.SetDefault("ingest.max_entry_size", d.Ingest.MaxEntrySize)
	v.SetDefault("ingest.preview_length", d.Ingest.PreviewLength)
	v.SetDefault("ingest.recommended_size", d.Ingest.RecommendedSize)

	v.SetDefault("analysis.base_url", d.Analysis.BaseURL)
	v.SetDefault("analysis.timeout", d.Analysis.Timeout)
	v.SetDefault("analysis.user_agent", d.Analysis.UserAgent)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.max_connections", d.Cache.MaxConnections)
	v.SetDefault("cache.min_idle_conns", d.Cache.MinIdleConns)
	v.SetDefault("cache.bolt_path", d.Cache.BoltPath)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)

	v.SetDefault("store.enabled", d.Store.Enabled)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)

	v.SetDefault("security.rate_limit.enabled", d.Security.RateLimit.Enabled)
	v.SetDefault("security.rate_limit.requests_per_min", d.Security.RateLimit.RequestsPerMin)
	v.SetDefault("security.rate_limit.burst", d.Security.RateLimit.Burst)
	v.SetDefault("security.allowed_origins", d.Security.AllowedOrigins)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)
	v.SetDefault("logging.file.max_size", d.Logging.File.MaxSize)
	v.SetDefault("logging.file.max_age", d.Logging.File.MaxAge)
	v.SetDefault("logging.file.max_backups", d.Logging.File.MaxBackups)
	v.SetDefault("logging.file.compress", d.Logging.File.Compress)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.path", d.WebSocket.Path)
	v.SetDefault("websocket.username", d.WebSocket.Username)
	v.SetDefault("websocket.password", d.WebSocket.Password)
	v.SetDefault("websocket.allowed_origins", d.WebSocket.AllowedOrigins)
	v.SetDefault("websocket.events.broadcast_anonymization", d.WebSocket.Events.BroadcastAnonymization)
	v.SetDefault("websocket.events.broadcast_analysis", d.WebSocket.Events.BroadcastAnalysis)
	v.SetDefault("websocket.events.broadcast_requests", d.WebSocket.Events.BroadcastRequests)
	v.SetDefault("websocket.events.broadcast_system", d.WebSocket.Events.BroadcastSystem)
	v.SetDefault("websocket.events.broadcast_connections", d.WebSocket.Events.BroadcastConnections)

	v.SetDefault("batch.worker_count", d.Batch.WorkerCount)
	v.SetDefault("batch.output_dir", d.Batch.OutputDir)
	v.SetDefault("batch.summary", d.Batch.Summary)
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if _, err := config.Ingest.MaxUploadBytes(); err != nil {
		return err
	}
	if _, err := config.Ingest.MaxEntryBytes(); err != nil {
		return err
	}
	if _, err := config.Ingest.RecommendedBytes(); err != nil {
		return err
	}
	if config.Ingest.PreviewLength < 0 {
		return fmt.Errorf("invalid preview length: %d", config.Ingest.PreviewLength)
	}

	u, err := url.Parse(config.Analysis.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid analysis base_url: %q", config.Analysis.BaseURL)
	}

	switch config.Cache.Backend {
	case "none", "memory", "redis", "bbolt":
	default:
		return fmt.Errorf("invalid cache backend: %s (must be none, memory, redis, or bbolt)", config.Cache.Backend)
	}

	if config.Store.Enabled && config.Store.Driver != "postgres" && config.Store.Driver != "sqlite" {
		return fmt.Errorf("invalid store driver: %s (must be postgres or sqlite)", config.Store.Driver)
	}

	if config.Security.RateLimit.Enabled && config.Security.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.Security.RateLimit.RequestsPerMin)
	}

	if config.Batch.WorkerCount <= 0 {
		return fmt.Errorf("invalid batch worker count: %d", config.Batch.WorkerCount)
	}

	return nil
}
