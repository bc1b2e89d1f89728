package bunrepo

import (
	"strings"

	"github.com/goliatone/go-activities/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func withID(id uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	}
}

func withoutDeleted() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.deleted_at IS NULL")
	}
}

func withName(name string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("LOWER(?TableAlias.name) = ?", strings.ToLower(strings.TrimSpace(name)))
	}
}

func withSubject(subjectType, subjectID string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.subject_type = ?", subjectType).
			Where("?TableAlias.subject_id = ?", subjectID)
	}
}

// withLatestPerSubject keeps rows that have no newer sibling for the same subject.
func withLatestPerSubject() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(`NOT EXISTS (
			SELECT 1 FROM activities AS newer
			WHERE newer.subject_type = ?TableAlias.subject_type
			AND newer.subject_id = ?TableAlias.subject_id
			AND newer.id > ?TableAlias.id)`)
	}
}

func newestFirst() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.id DESC")
	}
}

func withLimit(limit int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(limit)
	}
}

func withListOptions(opts store.ListOptions) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
		if !opts.Since.IsZero() {
			q = q.Where("?TableAlias.created_at >= ?", opts.Since)
		}
		if !opts.Until.IsZero() {
			q = q.Where("?TableAlias.created_at <= ?", opts.Until)
		}
		return q
	}
}
