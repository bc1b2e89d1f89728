package bunrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-activities/pkg/secrets"
	"github.com/uptrace/bun"
)

// SecretRecord is the row shape of encrypted notifier credentials.
type SecretRecord struct {
	bun.BaseModel `bun:"table:notifier_secrets"`

	ID        int64          `bun:",pk,autoincrement"`
	Scope     string         `bun:",notnull,unique:secret_identity"`
	Owner     string         `bun:",notnull,unique:secret_identity"`
	Notifier  string         `bun:",notnull,unique:secret_identity"`
	Key       string         `bun:",notnull,unique:secret_identity"`
	Version   string         `bun:",notnull,unique:secret_identity"`
	Cipher    []byte         `bun:",notnull"`
	Nonce     []byte         `bun:",notnull"`
	Metadata  map[string]any `bun:",type:jsonb"`
	CreatedAt time.Time      `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time      `bun:",nullzero,notnull,default:current_timestamp"`
}

// SecretStore persists sealed credentials for secrets.EncryptedStoreProvider.
type SecretStore struct {
	db *bun.DB
}

var _ secrets.Store = (*SecretStore)(nil)

func NewSecretStore(db *bun.DB) *SecretStore {
	return &SecretStore{db: db}
}

func (s *SecretStore) Put(ctx context.Context, rec secrets.Record) error {
	model := toSecretRecord(rec)
	_, err := conn(ctx, s.db).NewInsert().
		Model(model).
		On("CONFLICT (scope, owner, notifier, key, version) DO UPDATE").
		Set("cipher = EXCLUDED.cipher").
		Set("nonce = EXCLUDED.nonce").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	return err
}

func (s *SecretStore) GetLatest(ctx context.Context, ref secrets.Reference) (secrets.Record, error) {
	var rec SecretRecord
	err := s.identity(conn(ctx, s.db).NewSelect().Model(&rec), ref).
		OrderExpr("version DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return secrets.Record{}, mapSecretError(err)
	}
	return fromSecretRecord(rec), nil
}

func (s *SecretStore) GetVersion(ctx context.Context, ref secrets.Reference) (secrets.Record, error) {
	var rec SecretRecord
	err := s.identity(conn(ctx, s.db).NewSelect().Model(&rec), ref).
		Where("version = ?", ref.Version).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return secrets.Record{}, mapSecretError(err)
	}
	return fromSecretRecord(rec), nil
}

func (s *SecretStore) Delete(ctx context.Context, ref secrets.Reference) error {
	_, err := conn(ctx, s.db).NewDelete().
		Model((*SecretRecord)(nil)).
		Where("scope = ? AND owner = ? AND notifier = ? AND key = ?", string(ref.Scope), ref.Owner, ref.Notifier, ref.Key).
		Exec(ctx)
	return err
}

func (s *SecretStore) List(ctx context.Context, filter secrets.Reference) ([]secrets.Record, error) {
	var recs []SecretRecord
	query := conn(ctx, s.db).NewSelect().Model(&recs)
	if filter.Scope != "" {
		query = query.Where("scope = ?", string(filter.Scope))
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Notifier != "" {
		query = query.Where("notifier = ?", filter.Notifier)
	}
	if filter.Key != "" {
		query = query.Where("key = ?", filter.Key)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	results := make([]secrets.Record, 0, len(recs))
	for _, r := range recs {
		results = append(results, fromSecretRecord(r))
	}
	return results, nil
}

func (s *SecretStore) identity(q *bun.SelectQuery, ref secrets.Reference) *bun.SelectQuery {
	return q.Where("scope = ? AND owner = ? AND notifier = ? AND key = ?", string(ref.Scope), ref.Owner, ref.Notifier, ref.Key)
}

func mapSecretError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return secrets.ErrNotFound
	}
	return err
}

func toSecretRecord(rec secrets.Record) *SecretRecord {
	return &SecretRecord{
		Scope:    rec.Scope,
		Owner:    rec.Owner,
		Notifier: rec.Notifier,
		Key:      rec.Key,
		Version:  rec.Version,
		Cipher:   rec.Cipher,
		Nonce:    rec.Nonce,
		Metadata: rec.Metadata,
	}
}

func fromSecretRecord(rec SecretRecord) secrets.Record {
	return secrets.Record{
		Scope:     rec.Scope,
		Owner:     rec.Owner,
		Notifier:  rec.Notifier,
		Key:       rec.Key,
		Version:   rec.Version,
		Cipher:    rec.Cipher,
		Nonce:     rec.Nonce,
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
