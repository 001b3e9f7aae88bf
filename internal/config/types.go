package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	BindAddress     string        `yaml:"bind_address" mapstructure:"bind_address"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// PrivacyConfig contains anonymizer configuration
type PrivacyConfig struct {
	// WholeWordSweep makes the final name sweep skip matches embedded in
	// longer words. Off by default: plain substring replacement.
	WholeWordSweep bool `yaml:"whole_word_sweep" mapstructure:"whole_word_sweep"`
}

// IngestConfig controls how uploaded exports are read
type IngestConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
	MaxUploadSize     string   `yaml:"max_upload_size" mapstructure:"max_upload_size"`
	MaxArchiveEntries int      `yaml:"max_archive_entries" mapstructure:"max_archive_entries"`
	MaxEntrySize      string   `yaml:"max_entry_size" mapstructure:"max_entry_size"`
	PreviewLength     int      `yaml:"preview_length" mapstructure:"preview_length"`
	RecommendedSize   string   `yaml:"recommended_size" mapstructure:"recommended_size"`
}

// MaxUploadBytes parses MaxUploadSize ("25MB").
func (c IngestConfig) MaxUploadBytes() (int64, error) {
	return parseSize("max_upload_size", c.MaxUploadSize)
}

// MaxEntryBytes parses MaxEntrySize.
func (c IngestConfig) MaxEntryBytes() (int64, error) {
	return parseSize("max_entry_size", c.MaxEntrySize)
}

// RecommendedBytes parses RecommendedSize.
func (c IngestConfig) RecommendedBytes() (int64, error) {
	return parseSize("recommended_size", c.RecommendedSize)
}

// AnalysisConfig points at the remote analysis service
type AnalysisConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig contains analysis cache configuration
type CacheConfig struct {
	Backend        string        `yaml:"backend" mapstructure:"backend"` // none, memory, redis, bbolt
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	BoltPath       string        `yaml:"bolt_path" mapstructure:"bolt_path"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// StoreConfig contains analysis history database configuration
type StoreConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// SecurityConfig contains request guardrails
type SecurityConfig struct {
	RateLimit      RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	AllowedOrigins []string        `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RateLimitConfig limits analyze calls per client IP
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string        `yaml:"level" mapstructure:"level"`
	Format string        `yaml:"format" mapstructure:"format"` // json or console
	File   LogFileConfig `yaml:"file" mapstructure:"file"`
}

// LogFileConfig contains rotated log file settings
type LogFileConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool            `yaml:"enabled" mapstructure:"enabled"`
	Path           string          `yaml:"path" mapstructure:"path"`
	Username       string          `yaml:"username" mapstructure:"username"`
	Password       string          `yaml:"password" mapstructure:"password"`
	AllowedOrigins []string        `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         WebSocketEvents `yaml:"events" mapstructure:"events"`
}

// WebSocketEvents toggles broadcast event types
type WebSocketEvents struct {
	BroadcastAnonymization bool `yaml:"broadcast_anonymization" mapstructure:"broadcast_anonymization"`
	BroadcastAnalysis      bool `yaml:"broadcast_analysis" mapstructure:"broadcast_analysis"`
	BroadcastRequests      bool `yaml:"broadcast_requests" mapstructure:"broadcast_requests"`
	BroadcastSystem        bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
	BroadcastConnections   bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// BatchConfig contains offline batch settings
type BatchConfig struct {
	WorkerCount int    `yaml:"worker_count" mapstructure:"worker_count"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	Summary     string `yaml:"summary" mapstructure:"summary"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:     "127.0.0.1",
			Port:            8080,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    240 * time.Second, // remote analysis may take minutes
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Privacy: PrivacyConfig{
			WholeWordSweep: false,
		},
		Ingest: IngestConfig{
			AllowedExtensions: []string{".txt", ".html", ".htm", ".zip"},
			MaxUploadSize:     "50MB",
			MaxArchiveEntries: 1000,
			MaxEntrySize:      "20MB",
			PreviewLength:     2000,
			RecommendedSize:   "1MB",
		},
		Analysis: AnalysisConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   220 * time.Second,
			UserAgent: "chatpsy/0.1.0",
		},
		Cache: CacheConfig{
			Backend:        "memory",
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   1,
			BoltPath:       "data/cache.db",
			DefaultTTL:     24 * time.Hour,
			KeyPrefix:      "chatpsy",
		},
		Store: StoreConfig{
			Enabled:         false,
			Driver:          "sqlite",
			DSN:             "file:data/chatpsy.db?_pragma=busy_timeout(5000)",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 10,
				Burst:          3,
			},
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: LogFileConfig{
				Enabled:    false,
				Path:       "logs/chatpsy.log",
				MaxSize:    100, // MB
				MaxAge:     30,  // days
				MaxBackups: 5,
				Compress:   true,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
			Events: WebSocketEvents{
				BroadcastAnonymization: true,
				BroadcastAnalysis:      true,
				BroadcastRequests:      true,
				BroadcastSystem:        true,
				BroadcastConnections:   true,
			},
		},
		Batch: BatchConfig{
			WorkerCount: 4,
			OutputDir:   "anonymized",
			Summary:     "summary.parquet",
		},
	}
}

func parseSize(key, value string) (int64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return int64(n), nil
}
