package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestBasicLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf).AtLevel(ParseLevel("warn"))

	log.Info("ignored")
	log.With(Field{Key: "notifier", Value: "wall"}).Warn("delivery error", Field{Key: "attempt", Value: 2})

	out := strings.TrimSpace(buf.String())
	if out != "[WARN] delivery error notifier=wall attempt=2" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" ERROR ": LevelError,
		"warning": LevelWarn,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}
