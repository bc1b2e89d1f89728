package announcements

import (
	"strconv"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
)

// SubjectType is the registry key of announcements.
var SubjectType = domain.NewSubjectType("announcements", "announcement")

// Announcement is a staff notice shown on the front page.
type Announcement struct {
	ID        int64     `json:"id" msgpack:"id"`
	Title     string    `json:"title" msgpack:"title"`
	Body      string    `json:"body" msgpack:"body"`
	PubState  string    `json:"pub_state" msgpack:"pub_state"`
	AuthorID  string    `json:"author_id,omitempty" msgpack:"author_id,omitempty"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

func (a *Announcement) SubjectType() domain.SubjectType { return SubjectType }
func (a *Announcement) SubjectID() string               { return strconv.FormatInt(a.ID, 10) }
