package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordMeta captures identifiers and audit fields shared across mutable entities.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:",soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = NewID()
	}
}

// NewID returns a time ordered UUID (v7), falling back to v4.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// JSONMap persists arbitrary metadata fields as JSON.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if m == nil {
		return errors.New("JSONMap: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("JSONMap: unsupported type %T", value)
	}
}

// SubjectType names a registered entity type as "{app}.{entity}".
type SubjectType struct {
	App    string
	Entity string
}

// NewSubjectType normalizes app and entity labels.
func NewSubjectType(app, entity string) SubjectType {
	return SubjectType{
		App:    strings.ToLower(strings.TrimSpace(app)),
		Entity: strings.ToLower(strings.TrimSpace(entity)),
	}
}

// ParseSubjectType splits "{app}.{entity}".
func ParseSubjectType(value string) (SubjectType, error) {
	app, entity, ok := strings.Cut(strings.TrimSpace(value), ".")
	if !ok || app == "" || entity == "" {
		return SubjectType{}, fmt.Errorf("domain: invalid subject type %q", value)
	}
	return NewSubjectType(app, entity), nil
}

func (t SubjectType) String() string {
	if t.IsZero() {
		return ""
	}
	return t.App + "." + t.Entity
}

// IsZero reports whether the type is unset.
func (t SubjectType) IsZero() bool {
	return t.App == "" && t.Entity == ""
}

// Subject is implemented by every entity the activity pipeline observes.
type Subject interface {
	SubjectType() SubjectType
	SubjectID() string
}

// Snapshot is the encoded field state of a subject frozen at record time.
type Snapshot []byte

// IsZero reports whether the snapshot holds no payload.
func (s Snapshot) IsZero() bool {
	return len(s) == 0
}

// Activity is one recorded occurrence in a subject's history. Activities are
// never updated once persisted.
type Activity struct {
	bun.BaseModel `bun:"table:activities,alias:a"`

	ID            uuid.UUID `bun:",pk,type:uuid" json:"id"`
	SubjectType   string    `bun:",nullzero,notnull" json:"subject_type"`
	SubjectID     string    `bun:",nullzero,notnull" json:"subject_id"`
	Status        string    `bun:",nullzero,notnull" json:"status"`
	Remarks       string    `bun:",nullzero" json:"remarks,omitempty"`
	Snapshot      Snapshot  `bun:",nullzero" json:"-"`
	SnapshotCodec string    `bun:",nullzero" json:"snapshot_codec,omitempty"`
	PreviousID    uuid.UUID `bun:",nullzero,type:uuid" json:"previous_id,omitempty"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`

	// Previous is the newest committed activity of the same subject at the
	// time this one was drafted. Never persisted.
	Previous *Activity `bun:"-" json:"-"`
}

// EnsureID assigns a time ordered identifier.
func (a *Activity) EnsureID() {
	if a.ID == uuid.Nil {
		a.ID = NewID()
	}
}

// Type returns the parsed subject type.
func (a *Activity) Type() SubjectType {
	if a == nil {
		return SubjectType{}
	}
	st, err := ParseSubjectType(a.SubjectType)
	if err != nil {
		return SubjectType{}
	}
	return st
}

// SetPrevious links the activity to the given prior activity.
func (a *Activity) SetPrevious(prev *Activity) {
	a.Previous = prev
	if prev == nil {
		a.PreviousID = uuid.Nil
		return
	}
	a.PreviousID = prev.ID
}

// RemarkTokens splits remarks on whitespace.
func (a *Activity) RemarkTokens() []string {
	if a == nil || a.Remarks == "" {
		return nil
	}
	return strings.Fields(a.Remarks)
}

// SetRemarks stores tokens newline-joined.
func (a *Activity) SetRemarks(tokens ...string) {
	a.Remarks = strings.Join(tokens, "\n")
}

// HasRemark reports whether the token is present.
func (a *Activity) HasRemark(token string) bool {
	return slices.Contains(a.RemarkTokens(), token)
}

// Clone returns a copy that does not share the snapshot buffer.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	out := *a
	if a.Snapshot != nil {
		out.Snapshot = slices.Clone(a.Snapshot)
	}
	return &out
}

// ActivityTemplate stores a named activity template body.
type ActivityTemplate struct {
	bun.BaseModel `bun:"table:activity_templates"`
	RecordMeta

	Name        string  `bun:",unique,nullzero,notnull" json:"name"`
	Body        string  `bun:",nullzero" json:"body"`
	Description string  `bun:",nullzero" json:"description,omitempty"`
	Metadata    JSONMap `bun:"type:jsonb,nullzero" json:"metadata,omitempty"`
}

// Built-in activity statuses.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
)
