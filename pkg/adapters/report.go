package adapters

import "github.com/goliatone/go-activities/pkg/interfaces/logger"

// Reporter logs delivery outcomes with the activity fields every messenger
// shares.
type Reporter struct {
	log logger.Logger
}

// NewReporter scopes l to the messenger name.
func NewReporter(name string, l logger.Logger) Reporter {
	if l == nil {
		l = &logger.Nop{}
	}
	return Reporter{log: l.With(logger.Field{Key: "adapter", Value: name})}
}

// Logger returns the scoped logger.
func (r Reporter) Logger() logger.Logger {
	if r.log == nil {
		return &logger.Nop{}
	}
	return r.log
}

// Delivered records a successful send.
func (r Reporter) Delivered(msg Message, extra ...logger.Field) {
	r.Logger().Info("activity delivered", append(activityFields(msg), extra...)...)
}

// Skipped records a dry run send.
func (r Reporter) Skipped(msg Message, extra ...logger.Field) {
	r.Logger().Info("dry run, send skipped", append(activityFields(msg), extra...)...)
}

func activityFields(msg Message) []logger.Field {
	return []logger.Field{
		{Key: "activity_id", Value: msg.ID},
		{Key: "subject_type", Value: msg.SubjectType},
		{Key: "status", Value: msg.Status},
		{Key: "channel", Value: msg.Channel},
	}
}
