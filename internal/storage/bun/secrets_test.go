package bunrepo

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-activities/pkg/secrets"
)

func TestSecretStoreWithEncryptedProvider(t *testing.T) {
	db := setupSQLiteDB(t)
	store := NewSecretStore(db)
	ctx := context.Background()

	prov, err := secrets.NewEncryptedStoreProvider(store, bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	ref := secrets.Reference{Scope: secrets.ScopeSystem, Owner: "kawaz", Notifier: "twitter", Key: "access_token"}
	if _, err := prov.Put(ctx, ref, []byte("official-token")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := prov.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.String() != "official-token" {
		t.Fatalf("unexpected value %s", got.Data)
	}

	list, err := store.List(ctx, secrets.Reference{Notifier: "twitter"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}

	if err := prov.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := prov.Get(ctx, ref); !errors.Is(err, secrets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
