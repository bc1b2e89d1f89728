package secrets

import (
	"strings"
	"testing"
)

func TestMaskValuesKeysByNotifierAndKey(t *testing.T) {
	official := Reference{Scope: ScopeSystem, Owner: "system", Notifier: "twitter_kawaz_official", Key: "bearer_token"}
	member := Reference{Scope: ScopeUser, Owner: "7", Notifier: "slack"}

	masked := MaskValues(map[Reference]Value{
		official: {Data: []byte("AAAA-official-token"), Version: "v1"},
		member:   {Data: []byte("xoxb-member"), Version: "v2"},
	})
	if len(masked) != 2 {
		t.Fatalf("expected 2 masked entries, got %d", len(masked))
	}

	entry, ok := masked["twitter_kawaz_official/bearer_token"].(map[string]any)
	if !ok {
		t.Fatalf("expected notifier/key entry, got %v", masked)
	}
	if entry["version"] != "v1" {
		t.Fatalf("expected version v1, got %v", entry["version"])
	}
	value, _ := entry["value"].(string)
	if value == "" || strings.Contains(value, "official") {
		t.Fatalf("expected value to be masked, got %s", value)
	}

	if _, ok := masked["slack"].(map[string]any); !ok {
		t.Fatalf("expected notifier label when key is empty, got %v", masked)
	}
}

func TestMaskValuesEmptyInput(t *testing.T) {
	if out := MaskValues(nil); out != nil {
		t.Fatalf("expected nil output for nil input, got %v", out)
	}
}

func TestMaskShortValues(t *testing.T) {
	if got := Mask("abc"); got != "***" {
		t.Fatalf("expected short value to be hidden, got %s", got)
	}
	if got := Mask(""); got != "" {
		t.Fatalf("expected empty value to stay empty, got %s", got)
	}
}
