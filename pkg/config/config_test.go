package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadFromMap(t *testing.T) {
	input := map[string]any{
		"localization": map[string]any{
			"default_locale": "ja",
		},
		"notifications": map[string]any{
			"oauth_enabled": true,
			"max_retries":   5,
		},
		"templates": map[string]any{
			"extensions": map[string]any{"twitter": ".txt", "slack": ".md"},
		},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Localization.DefaultLocale != "ja" {
		t.Fatalf("expected locale ja, got %s", cfg.Localization.DefaultLocale)
	}
	if !cfg.Notifications.Enabled || !cfg.Notifications.OAuthEnabled {
		t.Fatalf("expected notifications and oauth enabled, got %+v", cfg.Notifications)
	}
	if cfg.Notifications.MaxRetries != 5 {
		t.Fatalf("expected retries 5, got %d", cfg.Notifications.MaxRetries)
	}
	if got := cfg.TemplateSettings().Extensions.Channels["slack"]; got != ".md" {
		t.Fatalf("expected slack extension .md, got %q", got)
	}
}

func TestLoadFromStruct(t *testing.T) {
	input := Config{
		Localization:  LocalizationConfig{DefaultLocale: "fr"},
		Notifications: NotificationConfig{Enabled: false, MaxRetries: 1},
	}

	cfg, err := Load(input)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Localization.DefaultLocale != "fr" {
		t.Fatalf("expected locale fr, got %s", cfg.Localization.DefaultLocale)
	}
	if cfg.Notifications.Enabled {
		t.Fatalf("explicit struct input keeps notifications disabled")
	}
	if cfg.Templates.Root != "activities" || cfg.Storage.Driver != StorageMemory {
		t.Fatalf("expected defaults to fill gaps, got %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"missing dsn":        func(c *Config) { c.Storage.Driver = StoragePostgres },
		"unknown driver":     func(c *Config) { c.Storage.Driver = "mongo" },
		"unknown codec":      func(c *Config) { c.Storage.Codec = "xml" },
		"redis without addr": func(c *Config) { c.Cache.Driver = CacheRedis },
		"undeclared default": func(c *Config) { c.Notifications.DefaultNotifiers = []string{"twitter"} },
		"kafka without topic": func(c *Config) {
			c.Notifiers = []NotifierConfig{{Name: "bus", Type: "kafka"}}
		},
		"duplicate notifier": func(c *Config) {
			c.Notifiers = []NotifierConfig{{Name: "log", Type: "console"}, {Name: "log", Type: "console"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.yaml")
	body := `
templates:
  root: kawaz/activities
  cache_ttl: 5m
notifications:
  enabled: false
  default_notifiers: [log]
notifiers:
  - name: log
    type: console
storage:
  codec: msgpack
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Templates.Root != "kawaz/activities" || cfg.Templates.CacheTTL != 5*time.Minute {
		t.Fatalf("unexpected templates %+v", cfg.Templates)
	}
	if cfg.Notifications.Enabled {
		t.Fatalf("expected notifications disabled")
	}
	if cfg.Templates.Extensions["twitter"] != ".txt" {
		t.Fatalf("expected default twitter extension, got %v", cfg.Templates.Extensions)
	}
	if cfg.Storage.Codec != "msgpack" || len(cfg.Notifiers) != 1 {
		t.Fatalf("unexpected storage/notifiers %+v %+v", cfg.Storage, cfg.Notifiers)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ACTIVITIES_KAFKA_BROKERS":               "a:9092, b:9092",
		"ACTIVITIES_NOTIFICATIONS_OAUTH_ENABLED": "true",
		"ACTIVITIES_LOG_LEVEL":                   "debug",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	cfg, err := ApplyEnv(Defaults(), lookup)
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if !slices.Equal(cfg.Kafka.Brokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if !cfg.Notifications.OAuthEnabled || cfg.Logging.Level != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	env["ACTIVITIES_METRICS_ENABLED"] = "maybe"
	if _, err := ApplyEnv(Defaults(), lookup); err == nil {
		t.Fatalf("expected bool parse error")
	}
}

func TestFromEnvPrefersProcessEnvironment(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	content := "ACTIVITIES_DEFAULT_LOCALE=de\nACTIVITIES_TEMPLATES_ROOT=from-file\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ACTIVITIES_TEMPLATES_ROOT", "from-env")

	cfg, err := FromEnv(Defaults(), file, filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Localization.DefaultLocale != "de" {
		t.Fatalf("expected locale from dotenv, got %s", cfg.Localization.DefaultLocale)
	}
	if cfg.Templates.Root != "from-env" {
		t.Fatalf("expected process env to win, got %s", cfg.Templates.Root)
	}
}
