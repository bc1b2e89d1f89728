package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/options"
	"github.com/goliatone/go-activities/pkg/snapshot"
	"github.com/goliatone/go-config/cfgx"
	"gopkg.in/yaml.v3"
)

// Config captures module level configuration. Feature packages (registry,
// templates, notifiers, storage) pull from these nested structs.
type Config struct {
	Templates     TemplateConfig     `mapstructure:"templates" json:"templates" yaml:"templates"`
	Notifications NotificationConfig `mapstructure:"notifications" json:"notifications" yaml:"notifications"`
	Notifiers     []NotifierConfig   `mapstructure:"notifiers" json:"notifiers" yaml:"notifiers"`
	Localization  LocalizationConfig `mapstructure:"localization" json:"localization" yaml:"localization"`
	Storage       StorageConfig      `mapstructure:"storage" json:"storage" yaml:"storage"`
	Cache         CacheConfig        `mapstructure:"cache" json:"cache" yaml:"cache"`
	Kafka         KafkaConfig        `mapstructure:"kafka" json:"kafka" yaml:"kafka"`
	Metrics       MetricsConfig      `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
	Logging       LoggingConfig      `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// TemplateConfig controls template naming and caching.
type TemplateConfig struct {
	Root             string            `mapstructure:"root" json:"root" yaml:"root"`
	DefaultExtension string            `mapstructure:"default_extension" json:"default_extension" yaml:"default_extension"`
	Extensions       map[string]string `mapstructure:"extensions" json:"extensions" yaml:"extensions"`
	// Dir, when set, loads templates from disk before the repository.
	Dir      string        `mapstructure:"dir" json:"dir" yaml:"dir"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"`
}

// NotificationConfig holds the global notification switches.
type NotificationConfig struct {
	Enabled      bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	OAuthEnabled bool `mapstructure:"oauth_enabled" json:"oauth_enabled" yaml:"oauth_enabled"`
	// DefaultNotifiers apply to mediators registered without notifiers.
	DefaultNotifiers []string `mapstructure:"default_notifiers" json:"default_notifiers" yaml:"default_notifiers"`
	MaxRetries       int      `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
}

// NotifierConfig declares one named notifier.
type NotifierConfig struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
	// Type is console, slack, webhook, twitter, ses, kafka or user_activity.
	Type            string   `mapstructure:"type" json:"type" yaml:"type"`
	Channel         string   `mapstructure:"channel" json:"channel" yaml:"channel"`
	To              string   `mapstructure:"to" json:"to" yaml:"to"`
	From            string   `mapstructure:"from" json:"from" yaml:"from"`
	URL             string   `mapstructure:"url" json:"url" yaml:"url"`
	Region          string   `mapstructure:"region" json:"region" yaml:"region"`
	CredentialKeys  []string `mapstructure:"credential_keys" json:"credential_keys" yaml:"credential_keys"`
	CredentialScope string   `mapstructure:"credential_scope" json:"credential_scope" yaml:"credential_scope"`
	// OwnerKey names the event value holding the credential owner.
	OwnerKey string `mapstructure:"owner_key" json:"owner_key" yaml:"owner_key"`
	DryRun   bool   `mapstructure:"dry_run" json:"dry_run" yaml:"dry_run"`
}

// LocalizationConfig controls the default locale used by the t helper.
type LocalizationConfig struct {
	DefaultLocale string `mapstructure:"default_locale" json:"default_locale" yaml:"default_locale"`
}

// StorageConfig selects the activity store.
type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`
	// Codec is the snapshot codec for new activities.
	Codec string `mapstructure:"codec" json:"codec" yaml:"codec"`
}

// CacheConfig selects the template cache.
type CacheConfig struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`
	Addr   string `mapstructure:"addr" json:"addr" yaml:"addr"`
}

// KafkaConfig configures the kafka notifier transport.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" json:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" json:"topic" yaml:"topic"`
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace"`
}

// LoggingConfig selects the logger backend.
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	// Format is basic (stdout lines) or zap.
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

// Supported drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	CacheNop    = "nop"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Defaults returns the baseline configuration.
func Defaults() Config {
	settings := activities.DefaultTemplateSettings()
	return Config{
		Templates: TemplateConfig{
			Root:             settings.Root,
			DefaultExtension: settings.Extensions.Default,
			Extensions:       settings.Extensions.Channels,
			CacheTTL:         time.Minute,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			MaxRetries: 3,
		},
		Localization: LocalizationConfig{DefaultLocale: "en"},
		Storage: StorageConfig{
			Driver: StorageMemory,
			Codec:  snapshot.CodecJSON,
		},
		Cache:   CacheConfig{Driver: CacheMemory},
		Metrics: MetricsConfig{Namespace: "activities"},
		Logging: LoggingConfig{Level: "info", Format: "basic"},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if c.Localization.DefaultLocale == "" {
		return errors.New("localization.default_locale is required")
	}
	if c.Templates.CacheTTL < 0 {
		return fmt.Errorf("templates.cache_ttl must be >= 0")
	}
	if c.Notifications.MaxRetries < 0 {
		return fmt.Errorf("notifications.max_retries must be >= 0")
	}
	if _, err := snapshot.Lookup(c.Storage.Codec); err != nil {
		return fmt.Errorf("storage.codec: %w", err)
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite, StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	switch c.Cache.Driver {
	case CacheNop, CacheMemory:
	case CacheRedis:
		if c.Cache.Addr == "" {
			return errors.New("cache.addr is required for redis")
		}
	default:
		return fmt.Errorf("cache.driver %q is not supported", c.Cache.Driver)
	}
	seen := map[string]bool{}
	for i, n := range c.Notifiers {
		if strings.TrimSpace(n.Name) == "" {
			return fmt.Errorf("notifiers[%d].name is required", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("notifiers[%d]: duplicate name %q", i, n.Name)
		}
		seen[n.Name] = true
		if n.Type == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
			return fmt.Errorf("notifiers[%d]: kafka.brokers and kafka.topic are required", i)
		}
	}
	for _, name := range c.Notifications.DefaultNotifiers {
		if !seen[name] {
			return fmt.Errorf("notifications.default_notifiers: %q is not declared", name)
		}
	}
	return nil
}

// TemplateSettings converts the templates section for the registry.
func (c Config) TemplateSettings() activities.TemplateSettings {
	return activities.TemplateSettings{
		Root: c.Templates.Root,
		Extensions: options.ExtensionSet{
			Default:  c.Templates.DefaultExtension,
			Channels: c.Templates.Extensions,
		},
	}
}

// NotificationSettings converts the notifications section for the service.
func (c Config) NotificationSettings() activities.NotificationSettings {
	return activities.NotificationSettings{
		Enabled:      c.Notifications.Enabled,
		OAuthEnabled: c.Notifications.OAuthEnabled,
	}
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// When cfgx.Build yields a zero value we fall back to a JSON decoder over the
// defaults.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	// maps are overlaid on the defaults first so omitted switches keep
	// their default values.
	if m, ok := input.(map[string]any); ok {
		base, err := decodeMap(m)
		if err != nil {
			return Config{}, err
		}
		input = base
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		cfg, err = decodeFallback(input)
		if err != nil {
			return Config{}, err
		}
	}

	return finish(cfg)
}

// LoadFile reads a YAML file over the defaults.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func finish(cfg Config) (Config, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Templates.Root == "" {
		c.Templates.Root = defaults.Templates.Root
	}
	if c.Templates.DefaultExtension == "" {
		c.Templates.DefaultExtension = defaults.Templates.DefaultExtension
	}
	if c.Templates.Extensions == nil {
		c.Templates.Extensions = defaults.Templates.Extensions
	}
	if c.Templates.CacheTTL == 0 {
		c.Templates.CacheTTL = defaults.Templates.CacheTTL
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = defaults.Notifications.MaxRetries
	}
	if c.Localization.DefaultLocale == "" {
		c.Localization.DefaultLocale = defaults.Localization.DefaultLocale
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	if c.Storage.Codec == "" {
		c.Storage.Codec = defaults.Storage.Codec
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = defaults.Cache.Driver
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any) (Config, error) {
	switch v := input.(type) {
	case nil:
		return Defaults(), nil
	case Config:
		return v, nil
	case *Config:
		if v == nil {
			return Defaults(), nil
		}
		return *v, nil
	case map[string]any:
		return decodeMap(v)
	default:
		return Config{}, fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any) (Config, error) {
	cfg := Defaults()
	if input == nil {
		return cfg, nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
