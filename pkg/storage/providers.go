package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	bunrepo "github.com/goliatone/go-activities/internal/storage/bun"
	"github.com/goliatone/go-activities/internal/storage/memory"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/goliatone/go-activities/pkg/secrets"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Providers exposes all repositories needed by services.
type Providers struct {
	Activities  store.ActivityRepository
	Templates   store.TemplateRepository
	Secrets     secrets.Store
	Transaction store.TransactionManager
	DB          *bun.DB
}

type Option func(*Providers)

// WithTransactionManager overrides the transaction manager, e.g. to join the
// host's entity transaction.
func WithTransactionManager(tx store.TransactionManager) Option {
	return func(p *Providers) {
		if tx != nil {
			p.Transaction = tx
		}
	}
}

// NewMemoryProviders returns repositories backed by in-memory maps.
func NewMemoryProviders(opts ...Option) Providers {
	providers := Providers{
		Activities:  memory.NewActivityRepository(),
		Templates:   memory.NewTemplateRepository(),
		Secrets:     secrets.NewMemoryStore(),
		Transaction: store.Inline,
	}
	for _, opt := range opts {
		opt(&providers)
	}
	return providers
}

// NewBunProviders wires Bun-backed repositories using go-repository-bun.
// The caller owns the *bun.DB lifecycle.
func NewBunProviders(db *bun.DB, opts ...Option) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}

	// Register models so go-persistence-bun migrations can pick them up.
	persistence.RegisterModel(Models()...)

	providers := Providers{
		Activities:  bunrepo.NewActivityRepository(db),
		Templates:   bunrepo.NewTemplateRepository(db),
		Secrets:     bunrepo.NewSecretStore(db),
		Transaction: &bunTxManager{db: db},
		DB:          db,
	}
	for _, opt := range opts {
		opt(&providers)
	}
	return providers
}

// Models lists the tables owned by this module.
func Models() []any {
	return []any{
		(*domain.Activity)(nil),
		(*domain.ActivityTemplate)(nil),
		(*bunrepo.SecretRecord)(nil),
	}
}

// OpenDB opens a bun handle for the sqlite or postgres driver.
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("storage: open sqlite: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("storage: postgres requires a dsn")
		}
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("storage: open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}

// CreateTables creates the module tables when missing. Hosts running
// go-persistence-bun migrations can skip this.
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("storage: create table: %w", err)
		}
	}
	return nil
}

// Open returns providers for the configured driver. Memory ignores dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Providers, error) {
	if driver == "" || strings.EqualFold(driver, DriverMemory) {
		return NewMemoryProviders(opts...), nil
	}
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return Providers{}, err
	}
	if err := CreateTables(ctx, db); err != nil {
		_ = db.Close()
		return Providers{}, err
	}
	return NewBunProviders(db, opts...), nil
}

// Close releases the database handle when one is open.
func (p Providers) Close() error {
	if p.DB == nil {
		return nil
	}
	return p.DB.Close()
}

type bunTxManager struct {
	db *bun.DB
}

func (m *bunTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := bunrepo.TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(bunrepo.WithTx(ctx, tx))
	})
}
