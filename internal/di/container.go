package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/activity/usersink"
	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/adapters/aws_ses"
	"github.com/goliatone/go-activities/pkg/adapters/console"
	"github.com/goliatone/go-activities/pkg/adapters/slack"
	"github.com/goliatone/go-activities/pkg/adapters/twitter"
	"github.com/goliatone/go-activities/pkg/adapters/webhook"
	"github.com/goliatone/go-activities/pkg/caches"
	"github.com/goliatone/go-activities/pkg/commands"
	"github.com/goliatone/go-activities/pkg/config"
	"github.com/goliatone/go-activities/pkg/interfaces/cache"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/mediators/announcements"
	"github.com/goliatone/go-activities/pkg/mediators/events"
	"github.com/goliatone/go-activities/pkg/mediators/hatenablog"
	"github.com/goliatone/go-activities/pkg/metrics"
	"github.com/goliatone/go-activities/pkg/notifier"
	"github.com/goliatone/go-activities/pkg/retry"
	"github.com/goliatone/go-activities/pkg/secrets"
	"github.com/goliatone/go-activities/pkg/storage"
	"github.com/goliatone/go-activities/pkg/templates"
	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Notifier types understood in configuration.
const (
	TypeConsole      = "console"
	TypeSlack        = "slack"
	TypeWebhook      = "webhook"
	TypeTwitter      = "twitter"
	TypeSES          = "ses"
	TypeKafka        = "kafka"
	TypeUserActivity = "user_activity"
)

// Options configure the DI container. Only Config is needed; everything else
// overrides what the config would build.
type Options struct {
	Config  config.Config
	Storage *storage.Providers
	Logger  logger.Logger
	Cache   cache.Cache
	// Translator enables the t helper in templates.
	Translator i18n.Translator
	// TemplateFS is consulted before templates.dir and the repository.
	TemplateFS fs.FS
	// Messengers are extra adapters; notifiers reference them by type.
	Messengers []adapters.Messenger
	Secrets    secrets.Resolver
	// SecretKey encrypts stored credentials (32 bytes).
	SecretKey   []byte
	KafkaWriter notifier.MessageWriter
	// ActivitySink backs user_activity notifiers.
	ActivitySink types.ActivitySink
	Registerer   prometheus.Registerer
	Users        events.UserLookup
	// Subjects enables the command catalog.
	Subjects commands.SubjectResolver
	// Register adds host mediators before the registry is sealed.
	Register func(registry *activities.Registry, lookup activities.NotifierLookup) error
}

// Container wires storage, templates, notifiers, the mediator registry, the
// activity service and the commands.
type Container struct {
	Config     config.Config
	Logger     logger.Logger
	Storage    storage.Providers
	Cache      cache.Cache
	Templates  *templates.Service
	Registry   *activities.Registry
	Notifiers  *notifier.Registry
	Adapters   *adapters.Registry
	Secrets    secrets.Resolver
	Metrics    activities.Metrics
	Activities *activities.Service
	Commands   *commands.Registry

	closers []func() error
}

func isZeroConfig(cfg config.Config) bool {
	return reflect.ValueOf(cfg).IsZero()
}

// New constructs the container using the supplied options.
func New(ctx context.Context, opts Options) (*Container, error) {
	cfg := opts.Config
	if isZeroConfig(cfg) {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lgr, err := newLogger(opts.Logger, cfg.Logging)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: lgr}

	if opts.Storage != nil {
		c.Storage = *opts.Storage
	} else {
		providers, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		c.Storage = providers
		c.closers = append(c.closers, providers.Close)
	}

	c.Cache = opts.Cache
	if c.Cache == nil {
		c.Cache = newCache(cfg.Cache)
		if closer, ok := c.Cache.(io.Closer); ok {
			c.closers = append(c.closers, closer.Close)
		}
	}

	loaders := []templates.Loader{}
	if opts.TemplateFS != nil {
		loaders = append(loaders, templates.FSLoader{FS: opts.TemplateFS})
	}
	if dir := strings.TrimSpace(cfg.Templates.Dir); dir != "" {
		loaders = append(loaders, templates.FSLoader{FS: os.DirFS(dir)})
	}
	c.Templates, err = templates.New(templates.Dependencies{
		Loaders:       loaders,
		Repository:    c.Storage.Templates,
		Cache:         c.Cache,
		Logger:        lgr,
		Translator:    opts.Translator,
		DefaultLocale: cfg.Localization.DefaultLocale,
		CacheTTL:      cfg.Templates.CacheTTL,
	})
	if err != nil {
		return nil, c.fail(err)
	}

	c.Secrets, err = newSecrets(opts, c.Storage)
	if err != nil {
		return nil, c.fail(err)
	}

	c.Adapters = adapters.NewRegistry()
	for _, m := range opts.Messengers {
		if err := c.Adapters.Register(m); err != nil {
			return nil, c.fail(err)
		}
	}
	c.Notifiers = notifier.NewRegistry()
	for _, def := range cfg.Notifiers {
		n, err := c.buildNotifier(def, opts)
		if err != nil {
			return nil, c.fail(fmt.Errorf("di: notifier %s: %w", def.Name, err))
		}
		if err := c.Notifiers.Register(n); err != nil {
			return nil, c.fail(err)
		}
	}

	c.Registry = activities.NewRegistry(activities.WithTemplateSettings(cfg.TemplateSettings()))
	if err := c.registerMediators(opts); err != nil {
		return nil, c.fail(err)
	}
	defaults, err := c.Notifiers.Resolve(cfg.Notifications.DefaultNotifiers...)
	if err != nil {
		return nil, c.fail(err)
	}
	c.Registry.ApplyDefaultNotifiers(defaults...)
	c.Registry.Seal()

	c.Metrics = activities.NopMetrics{}
	if cfg.Metrics.Enabled {
		collector, err := metrics.New(cfg.Metrics.Namespace, opts.Registerer)
		if err != nil {
			return nil, c.fail(err)
		}
		c.Metrics = collector
	}

	notifications := cfg.NotificationSettings()
	c.Activities, err = activities.New(activities.Dependencies{
		Registry:      c.Registry,
		Activities:    c.Storage.Activities,
		Transactions:  c.Storage.Transaction,
		Templates:     c.Templates,
		Logger:        lgr,
		Metrics:       c.Metrics,
		Codec:         cfg.Storage.Codec,
		Notifications: &notifications,
	})
	if err != nil {
		return nil, c.fail(err)
	}

	if opts.Subjects != nil {
		c.Commands, err = commands.New(commands.Dependencies{
			Activities: c.Activities,
			Templates:  c.Templates,
			Subjects:   opts.Subjects,
			Logger:     lgr,
		})
		if err != nil {
			return nil, c.fail(err)
		}
	}

	lgr.Info("activities container ready",
		logger.Field{Key: "mediators", Value: len(c.Registry.Types())},
		logger.Field{Key: "notifiers", Value: c.Notifiers.Names()},
		logger.Field{Key: "storage", Value: cfg.Storage.Driver},
	)
	return c, nil
}

// Close releases notifier transports, cache clients and storage handles.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) fail(err error) error {
	if closeErr := c.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

func (c *Container) registerMediators(opts Options) error {
	if err := c.Registry.Register(events.SubjectType, events.NewMediator(events.Dependencies{
		Users:  opts.Users,
		Logger: c.Logger,
	})); err != nil {
		return err
	}
	if err := c.Registry.Register(announcements.SubjectType, announcements.NewMediator()); err != nil {
		return err
	}
	blogDeps := hatenablog.Dependencies{}
	if _, ok := c.Notifiers.Lookup(hatenablog.DefaultNotifier); ok {
		blogDeps.Lookup = c.Notifiers
	}
	blog, err := hatenablog.NewMediator(blogDeps)
	if err != nil {
		return err
	}
	if err := c.Registry.Register(hatenablog.SubjectType, blog); err != nil {
		return err
	}
	if opts.Register != nil {
		return opts.Register(c.Registry, c.Notifiers)
	}
	return nil
}

func (c *Container) buildNotifier(def config.NotifierConfig, opts Options) (activities.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(def.Type)) {
	case TypeKafka:
		k, err := notifier.NewKafka(notifier.KafkaConfig{
			Name:    def.Name,
			Brokers: c.Config.Kafka.Brokers,
			Topic:   c.Config.Kafka.Topic,
			Channel: def.Channel,
		}, opts.KafkaWriter, c.Logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, k.Close)
		return k, nil
	case TypeUserActivity:
		return usersink.New(opts.ActivitySink, usersink.WithName(def.Name), usersink.WithChannel(def.Channel))
	}

	messenger, err := c.buildMessenger(def)
	if err != nil {
		return nil, err
	}
	cfg := notifier.MessengerConfig{
		Name:            def.Name,
		Channel:         def.Channel,
		To:              def.To,
		CredentialKeys:  def.CredentialKeys,
		CredentialScope: secrets.Scope(def.CredentialScope),
		Retry:           retry.Policy{MaxAttempts: c.Config.Notifications.MaxRetries},
	}
	if def.OwnerKey != "" {
		cfg.Owner = notifier.EventOwner(def.OwnerKey)
	}
	return notifier.NewMessenger(notifier.MessengerDependencies{
		Messenger: messenger,
		Secrets:   c.Secrets,
		Logger:    c.Logger,
		Config:    cfg,
	})
}

func (c *Container) buildMessenger(def config.NotifierConfig) (adapters.Messenger, error) {
	var messenger adapters.Messenger
	switch strings.ToLower(strings.TrimSpace(def.Type)) {
	case TypeConsole:
		messenger = console.New(c.Logger, console.WithName(def.Name))
	case TypeSlack:
		messenger = slack.New(c.Logger, slack.WithName(def.Name), slack.WithConfig(slack.Config{
			Channel: def.To,
			DryRun:  def.DryRun,
		}))
	case TypeWebhook:
		messenger = webhook.New(c.Logger, webhook.WithName(def.Name), webhook.WithConfig(webhook.Config{
			URL:    def.URL,
			DryRun: def.DryRun,
		}))
	case TypeTwitter:
		messenger = twitter.New(c.Logger,
			twitter.WithName(def.Name),
			twitter.WithConfig(twitter.Config{BaseURL: def.URL, DryRun: def.DryRun}),
			twitter.WithDelegatedCredentials(def.CredentialScope == string(secrets.ScopeUser)),
		)
	case TypeSES:
		messenger = aws_ses.New(c.Logger, aws_ses.WithName(def.Name), aws_ses.WithConfig(aws_ses.Config{
			From:   def.From,
			To:     def.To,
			Region: def.Region,
			DryRun: def.DryRun,
		}))
	default:
		existing, ok := c.Adapters.Get(def.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", adapters.ErrAdapterNotFound, def.Type)
		}
		return existing, nil
	}
	if err := c.Adapters.Register(messenger); err != nil {
		return nil, err
	}
	return messenger, nil
}

func newLogger(lgr logger.Logger, cfg config.LoggingConfig) (logger.Logger, error) {
	if lgr != nil {
		return lgr, nil
	}
	switch strings.ToLower(cfg.Format) {
	case "zap":
		return logger.NewZap(cfg.Level)
	case "nop", "":
		return &logger.Nop{}, nil
	default:
		return logger.New().AtLevel(logger.ParseLevel(cfg.Level)), nil
	}
}

func newCache(cfg config.CacheConfig) cache.Cache {
	switch cfg.Driver {
	case config.CacheRedis:
		return caches.NewRedis(caches.RedisConfig{Addr: cfg.Addr})
	case config.CacheMemory:
		return caches.NewMemory()
	default:
		return cache.Nop{}
	}
}

// newSecrets resolves system and user credentials from the secret store,
// encrypted when a key is configured.
func newSecrets(opts Options, providers storage.Providers) (secrets.Resolver, error) {
	if opts.Secrets != nil {
		return opts.Secrets, nil
	}
	var provider secrets.Provider = secrets.NewStaticProvider(nil)
	if len(opts.SecretKey) > 0 {
		if providers.Secrets == nil {
			return nil, errors.New("di: secret key given without a secret store")
		}
		encrypted, err := secrets.NewEncryptedStoreProvider(providers.Secrets, opts.SecretKey)
		if err != nil {
			return nil, err
		}
		provider = encrypted
	}
	resolver := secrets.ScopedResolver{System: provider, User: provider}
	return secrets.NewCachingResolver(resolver, time.Minute), nil
}
