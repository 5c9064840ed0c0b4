package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SubmissionEvents is the cache-invalidation collaborator: it is signalled
// after every submission create, grade, and import so downstream dashboards
// never serve stale rollups.
type SubmissionEvents interface {
	SubmissionsChanged(ctx context.Context, courseID, assignmentID uint)
}

type submissionEvents struct {
	nats    *nats.Conn
	subject string
	cache   *redis.Client
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSubmissionEvents constructs the event publisher. Both the NATS connection
// and the redis client may be nil; whatever is present is used.
func NewSubmissionEvents(natsConn *nats.Conn, subject string, cache *redis.Client, logger zerolog.Logger) SubmissionEvents {
	if subject == "" {
		subject = "campus.submissions.changed"
	}

	return &submissionEvents{
		nats:    natsConn,
		subject: subject,
		cache:   cache,
		logger:  logger.With().Str("component", "submission_events").Logger(),
		now:     time.Now,
	}
}

type submissionsChangedEvent struct {
	CourseID     uint      `json:"course_id"`
	AssignmentID uint      `json:"assignment_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (e *submissionEvents) SubmissionsChanged(ctx context.Context, courseID, assignmentID uint) {
	if e.cache != nil {
		keys := []string{
			assignmentStatsCacheKey(assignmentID),
			courseStatsCacheKey(courseID),
		}
		if err := e.cache.Del(ctx, keys...).Err(); err != nil {
			e.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to evict analytics cache")
		}
	}

	if e.nats == nil {
		return
	}

	payload, err := json.Marshal(submissionsChangedEvent{
		CourseID:     courseID,
		AssignmentID: assignmentID,
		OccurredAt:   e.now(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to encode submissions-changed event")
		return
	}

	if err := e.nats.Publish(e.subject, payload); err != nil {
		e.logger.Warn().Err(err).Str("subject", e.subject).Msg("failed to publish submissions-changed event")
	}
}

func assignmentStatsCacheKey(assignmentID uint) string {
	return fmt.Sprintf("analytics:assignment:%d", assignmentID)
}

func courseStatsCacheKey(courseID uint) string {
	return fmt.Sprintf("analytics:course:%d", courseID)
}
