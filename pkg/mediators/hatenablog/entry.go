package hatenablog

import (
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
)

// SubjectType is the registry key of blog entries.
var SubjectType = domain.NewSubjectType("hatenablog", "entry")

// Entry is one post of the official blog, mirrored by the feed scraper.
type Entry struct {
	URL       string    `json:"url" msgpack:"url"`
	Title     string    `json:"title" msgpack:"title"`
	Thumbnail string    `json:"thumbnail,omitempty" msgpack:"thumbnail,omitempty"`
	MD5       string    `json:"md5" msgpack:"md5"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

func (e *Entry) SubjectType() domain.SubjectType { return SubjectType }

// SubjectID is the entry URL, unique per entry.
func (e *Entry) SubjectID() string { return e.URL }
