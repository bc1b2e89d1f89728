package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// BasicLogger prints one "[LEVEL] msg key=value" line per entry.
type BasicLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	min    Level
	fields []Field
}

var _ Logger = (*BasicLogger)(nil)

// New returns a basic logger writing info and above to stdout.
func New() *BasicLogger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter returns a basic logger writing info and above to w.
func NewWithWriter(w io.Writer) *BasicLogger {
	if w == nil {
		w = os.Stdout
	}
	return &BasicLogger{mu: &sync.Mutex{}, out: w, min: LevelInfo}
}

// AtLevel returns a logger sharing the writer that drops entries below min.
func (l *BasicLogger) AtLevel(min Level) *BasicLogger {
	next := *l
	next.min = min
	return &next
}

// With returns a logger that includes the fields on each line.
func (l *BasicLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	next := *l
	next.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &next
}

func (l *BasicLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *BasicLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *BasicLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *BasicLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *BasicLogger) log(level Level, msg string, fields []Field) {
	if level < l.min {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, b.String())
}
