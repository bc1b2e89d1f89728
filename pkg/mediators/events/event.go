package events

import (
	"strconv"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
)

// SubjectType is the registry key of events.
var SubjectType = domain.NewSubjectType("events", "event")

// PersonaType is the related type whose membership changes are tracked.
const PersonaType = "personas.persona"

// Publication states.
const (
	PubStatePublic    = "public"
	PubStateProtected = "protected"
	PubStateDraft     = "draft"
)

// Event is the snapshot shape of a community event. Optional fields are
// pointers so an unset value is omitted from the snapshot.
type Event struct {
	ID                 int64      `json:"id" msgpack:"id"`
	Title              string     `json:"title" msgpack:"title"`
	Body               string     `json:"body,omitempty" msgpack:"body,omitempty"`
	PubState           string     `json:"pub_state" msgpack:"pub_state"`
	PeriodStart        *time.Time `json:"period_start,omitempty" msgpack:"period_start,omitempty"`
	PeriodEnd          *time.Time `json:"period_end,omitempty" msgpack:"period_end,omitempty"`
	Place              string     `json:"place,omitempty" msgpack:"place,omitempty"`
	NumberRestriction  *int       `json:"number_restriction,omitempty" msgpack:"number_restriction,omitempty"`
	AttendanceDeadline *time.Time `json:"attendance_deadline,omitempty" msgpack:"attendance_deadline,omitempty"`
	OrganizerID        string     `json:"organizer_id,omitempty" msgpack:"organizer_id,omitempty"`
	AttendeeIDs        []string   `json:"attendee_ids,omitempty" msgpack:"attendee_ids,omitempty"`
}

func (e *Event) SubjectType() domain.SubjectType { return SubjectType }
func (e *Event) SubjectID() string               { return strconv.FormatInt(e.ID, 10) }
