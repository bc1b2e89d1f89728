package secrets

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedStoreProvider seals notifier credentials with XChaCha20-Poly1305
// before they reach a Store. The credential identity is bound as additional
// data, so a row copied onto another notifier or owner fails to open.
type EncryptedStoreProvider struct {
	store Store
	aead  cipher.AEAD
	now   func() time.Time
}

var _ Provider = (*EncryptedStoreProvider)(nil)

// NewEncryptedStoreProvider builds a provider over store with a 32 byte key.
func NewEncryptedStoreProvider(store Store, key []byte) (*EncryptedStoreProvider, error) {
	if store == nil {
		return nil, errors.New("secrets: encrypted provider needs a store")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secrets: encryption key must be %d bytes", chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return &EncryptedStoreProvider{
		store: store,
		aead:  aead,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *EncryptedStoreProvider) Get(ctx context.Context, ref Reference) (Value, error) {
	rec, err := p.record(ctx, ref)
	if err != nil {
		return Value{}, err
	}
	plain, err := p.aead.Open(nil, rec.Nonce, rec.Cipher, identity(ref))
	if err != nil {
		return Value{}, fmt.Errorf("secrets: open %s/%s: %w", ref.Notifier, ref.Key, err)
	}
	return Value{Data: plain, Version: rec.Version, Retrieved: p.now(), Metadata: rec.Metadata}, nil
}

func (p *EncryptedStoreProvider) Put(ctx context.Context, ref Reference, value []byte) (string, error) {
	if err := ValidateReference(ref); err != nil {
		return "", err
	}
	if len(value) == 0 {
		return "", ErrEmptyValue
	}
	sealedAt := p.now()
	if ref.Version == "" {
		ref.Version = sealedAt.Format(time.RFC3339Nano)
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	rec := Record{
		Scope:    string(ref.Scope),
		Owner:    ref.Owner,
		Notifier: ref.Notifier,
		Key:      ref.Key,
		Version:  ref.Version,
		Nonce:    nonce,
		Cipher:   p.aead.Seal(nil, nonce, value, identity(ref)),
		Metadata: map[string]any{"sealed_at": sealedAt.Format(time.RFC3339)},
	}
	if err := p.store.Put(ctx, rec); err != nil {
		return "", storeError(err)
	}
	return ref.Version, nil
}

func (p *EncryptedStoreProvider) Delete(ctx context.Context, ref Reference) error {
	if err := ValidateReference(ref); err != nil {
		return err
	}
	return storeError(p.store.Delete(ctx, ref))
}

// Describe reports the newest version and its metadata without opening it.
func (p *EncryptedStoreProvider) Describe(ctx context.Context, ref Reference) (map[string]any, error) {
	rec, err := p.record(ctx, ref.Latest())
	if err != nil {
		return nil, err
	}
	return map[string]any{"version": rec.Version, "meta": rec.Metadata}, nil
}

func (p *EncryptedStoreProvider) record(ctx context.Context, ref Reference) (Record, error) {
	if err := ValidateReference(ref); err != nil {
		return Record{}, err
	}
	var (
		rec Record
		err error
	)
	if ref.Version == "" {
		rec, err = p.store.GetLatest(ctx, ref)
	} else {
		rec, err = p.store.GetVersion(ctx, ref)
	}
	return rec, storeError(err)
}

// identity is the sealed additional data: the reference without its version.
func identity(ref Reference) []byte {
	return []byte(baseKey(ref))
}

func storeError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
