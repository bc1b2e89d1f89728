package logger

import "strings"

// Field is a structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Logger is the structured logging contract every activities service takes.
type Logger interface {
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Level orders entries by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel reads "debug", "info", "warn" or "error"; anything else is info.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Nop drops every entry.
type Nop struct{}

var _ Logger = (*Nop)(nil)

func (n *Nop) With(...Field) Logger   { return n }
func (n *Nop) Debug(string, ...Field) {}
func (n *Nop) Info(string, ...Field)  {}
func (n *Nop) Warn(string, ...Field)  {}
func (n *Nop) Error(string, ...Field) {}
