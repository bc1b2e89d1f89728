package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ACTIVITIES_"

// FromEnv applies ACTIVITIES_* overrides to cfg. Values from the process
// environment win over the given dotenv files; missing files are ignored.
func FromEnv(cfg Config, files ...string) (Config, error) {
	dotenv := map[string]string{}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	cfg, err := ApplyEnv(cfg, lookup)
	if err != nil {
		return Config{}, err
	}
	return finish(cfg)
}

// ApplyEnv applies overrides read through lookup.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = parsed
		return nil
	}

	str("TEMPLATES_ROOT", &cfg.Templates.Root)
	str("TEMPLATES_DIR", &cfg.Templates.Dir)
	str("DEFAULT_LOCALE", &cfg.Localization.DefaultLocale)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	str("STORAGE_CODEC", &cfg.Storage.Codec)
	str("CACHE_DRIVER", &cfg.Cache.Driver)
	str("CACHE_ADDR", &cfg.Cache.Addr)
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	list("DEFAULT_NOTIFIERS", &cfg.Notifications.DefaultNotifiers)

	for key, dst := range map[string]*bool{
		"NOTIFICATIONS_ENABLED":       &cfg.Notifications.Enabled,
		"NOTIFICATIONS_OAUTH_ENABLED": &cfg.Notifications.OAuthEnabled,
		"METRICS_ENABLED":             &cfg.Metrics.Enabled,
	} {
		if err := boolean(key, dst); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
