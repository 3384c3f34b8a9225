// Package config loads and validates archiver configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/web-archiver/internal/notify"
	"github.com/JakeFAU/web-archiver/internal/provider"
)

// EnvPrefix prefixes every environment override, e.g. ARCHIVER_SERVER_PORT.
const EnvPrefix = "ARCHIVER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Links         LinksConfig         `mapstructure:"links"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Store         StoreConfig         `mapstructure:"store"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	DB            DBConfig            `mapstructure:"db"`
	PubSub        PubSubConfig        `mapstructure:"pubsub"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Events        EventsConfig        `mapstructure:"events"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ProvidersConfig selects archiving providers and their base URLs.
type ProvidersConfig struct {
	Enabled   []string          `mapstructure:"enabled"`
	Endpoints map[string]string `mapstructure:"endpoints"`
}

// LinksConfig controls inserted link text.
type LinksConfig struct {
	Text string `mapstructure:"text"`
}

// NotificationsConfig controls status messages.
type NotificationsConfig struct {
	Verbosity             string `mapstructure:"verbosity"`
	NtfyTopic             string `mapstructure:"ntfy_topic"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// StoreConfig locates the durable record document.
type StoreConfig struct {
	Location   string `mapstructure:"location"`
	DebounceMs int    `mapstructure:"debounce_ms"`
	Writable   bool   `mapstructure:"writable"`
}

// HTTPConfig configures outbound provider calls.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// DBConfig controls access to the transition history database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for transition publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// EventsConfig tunes the transition event hub.
type EventsConfig struct {
	BufferSize  int `mapstructure:"buffer_size"`
	BatchSize   int `mapstructure:"batch_size"`
	BatchWaitMs int `mapstructure:"batch_wait_ms"`
}

// Option adjusts the Viper instance before unmarshalling.
type Option func(*viper.Viper)

// WithOverride forces key to value, taking precedence over file and env.
func WithOverride(key string, value any) Option {
	return func(v *viper.Viper) { v.Set(key, value) }
}

// Load builds a Config from disk/environment.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for _, opt := range opts {
		opt(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("providers.enabled", []string{provider.WaybackName})
	v.SetDefault("links.text", "(📁)")
	v.SetDefault("notifications.verbosity", string(notify.Verbose))
	v.SetDefault("notifications.request_timeout_seconds", 10)
	v.SetDefault("store.location", "web-archiver.md")
	v.SetDefault("store.debounce_ms", 300)
	v.SetDefault("store.writable", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "web-archiver/1.0 (+https://github.com/JakeFAU/web-archiver)")
	v.SetDefault("http.rate_per_second", 1.0)
	v.SetDefault("http.burst", 2)
	v.SetDefault("db.table", "archive_transitions")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", false)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.batch_size", 256)
	v.SetDefault("events.batch_wait_ms", 500)
}

func (c *Config) normalize() {
	enabled := make([]string, 0, len(c.Providers.Enabled))
	for _, name := range c.Providers.Enabled {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			enabled = append(enabled, name)
		}
	}
	c.Providers.Enabled = enabled
	c.Store.Location = strings.TrimSpace(c.Store.Location)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Providers.Enabled) == 0 {
		return fmt.Errorf("providers.enabled must list at least one provider")
	}
	seen := make(map[string]struct{}, len(c.Providers.Enabled))
	for _, name := range c.Providers.Enabled {
		if !provider.Known(name) {
			return fmt.Errorf("providers.enabled: unknown provider %q (known: %s)",
				name, strings.Join(provider.Names(), ", "))
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("providers.enabled: %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	if _, ok := seen[provider.ArchiveBoxName]; ok && c.Providers.Endpoints[provider.ArchiveBoxName] == "" {
		return fmt.Errorf("providers.endpoints.archivebox must be set when archivebox is enabled")
	}
	for name, endpoint := range c.Providers.Endpoints {
		if endpoint == "" {
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("providers.endpoints.%s must be an http(s) URL", name)
		}
	}
	if _, err := notify.ParseVerbosity(c.Notifications.Verbosity); err != nil {
		return fmt.Errorf("notifications.verbosity: %w", err)
	}
	if c.Store.Location == "" {
		return fmt.Errorf("store.location must be set")
	}
	if c.Store.DebounceMs < 0 {
		return fmt.Errorf("store.debounce_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// CallTimeout bounds each provider call.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Debounce is the store's write quiescence window.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Store.DebounceMs) * time.Millisecond
}

// Verbosity returns the parsed notification verbosity.
func (c Config) Verbosity() notify.Verbosity {
	v, err := notify.ParseVerbosity(c.Notifications.Verbosity)
	if err != nil {
		return notify.Verbose
	}
	return v
}

// NotificationTimeout bounds ntfy pushes.
func (c Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// BatchWait is the longest a transition event waits for its batch to fill.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Events.BatchWaitMs) * time.Millisecond
}
