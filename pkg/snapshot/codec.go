package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownCodec is returned when a snapshot names a codec nobody registered.
var ErrUnknownCodec = errors.New("snapshot: unknown codec")

// Built-in codec names.
const (
	CodecJSON    = "json"
	CodecMsgPack = "msgpack"
)

// Codec freezes a subject into an opaque blob and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return CodecJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgPack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// JSON returns the default codec.
func JSON() Codec { return jsonCodec{} }

// MsgPack returns the compact binary codec.
func MsgPack() Codec { return msgpackCodec{} }

var (
	codecsMu sync.RWMutex
	codecs   = map[string]Codec{
		CodecJSON:    jsonCodec{},
		CodecMsgPack: msgpackCodec{},
	}
)

// Register makes a codec available to Lookup. Registering a taken name
// replaces the previous codec.
func Register(codec Codec) error {
	if codec == nil {
		return errors.New("snapshot: codec is required")
	}
	name := strings.ToLower(strings.TrimSpace(codec.Name()))
	if name == "" {
		return errors.New("snapshot: codec name is required")
	}
	codecsMu.Lock()
	codecs[name] = codec
	codecsMu.Unlock()
	return nil
}

// Lookup returns the codec registered under name. An empty name resolves to JSON.
func Lookup(name string) (Codec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = CodecJSON
	}
	codecsMu.RLock()
	codec, ok := codecs[name]
	codecsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
	return codec, nil
}

// Codecs lists registered codec names.
func Codecs() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode captures the subject state with the named codec.
func Encode(codecName string, subject any) (domain.Snapshot, error) {
	codec, err := Lookup(codecName)
	if err != nil {
		return nil, err
	}
	data, err := codec.Marshal(subject)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %s: %w", codec.Name(), err)
	}
	return domain.Snapshot(data), nil
}

// Decode restores a snapshot into v.
func Decode(codecName string, data domain.Snapshot, v any) error {
	codec, err := Lookup(codecName)
	if err != nil {
		return err
	}
	if data.IsZero() {
		return nil
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("snapshot: decode %s: %w", codec.Name(), err)
	}
	return nil
}

// Fields decodes a snapshot into its top level fields.
func Fields(codecName string, data domain.Snapshot) (map[string]any, error) {
	out := map[string]any{}
	if data.IsZero() {
		return out, nil
	}
	if err := Decode(codecName, data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FieldsOf returns the fields the subject would have once frozen with the
// named codec. Comparing against Fields of a stored snapshot of the same
// codec yields like for like values.
func FieldsOf(codecName string, subject any) (map[string]any, error) {
	data, err := Encode(codecName, subject)
	if err != nil {
		return nil, err
	}
	return Fields(codecName, data)
}

// Of returns the snapshot attached to an activity as fields.
func Of(activity *domain.Activity) (map[string]any, error) {
	if activity == nil {
		return map[string]any{}, nil
	}
	return Fields(activity.SnapshotCodec, activity.Snapshot)
}

// IsEmpty reports whether a decoded field value counts as unset: nil, blank
// strings, zero numbers, false and empty collections.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// Equal compares two decoded field values. Times, including the RFC3339
// strings the json codec produces, compare by instant.
func Equal(a, b any) bool {
	if IsEmpty(a) && IsEmpty(b) {
		return true
	}
	if ta, ok := asInstant(a); ok {
		if tb, ok := asInstant(b); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(normalizeNumber(a), normalizeNumber(b))
}

func asInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}
