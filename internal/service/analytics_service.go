package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
)

// AnalyticsService derives assignment- and course-level aggregates from the
// current submission set. It is a read-only view: the cache is a convenience
// and the raw submissions always win over anything cached.
type AnalyticsService interface {
	AssignmentStats(ctx context.Context, assignmentID uint) (dto.AssignmentStatsResponse, error)
	CourseStats(ctx context.Context, courseID uint) (dto.CourseStatsResponse, error)
}

type analyticsService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAnalyticsService constructs the analytics rollup service.
func NewAnalyticsService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	roster repository.RosterRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) AnalyticsService {
	return &analyticsService{
		submissions: submissions,
		assignments: assignments,
		roster:      roster,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "analytics_service").Logger(),
		now:         time.Now,
	}
}

func (s *analyticsService) AssignmentStats(ctx context.Context, assignmentID uint) (dto.AssignmentStatsResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/campus-core-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.assignment")
	span.SetAttributes(attribute.Int64("analytics.assignment_id", int64(assignmentID)))
	defer span.End()

	cacheKey := assignmentStatsCacheKey(assignmentID)
	var cached dto.AssignmentStatsResponse
	if s.readCache(ctx, cacheKey, &cached) {
		cached.CacheHit = true
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return cached, nil
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assignment_not_found")
			return dto.AssignmentStatsResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.AssignmentStatsResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: &assignmentID})
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentStatsResponse{}, err
	}

	enrolled, err := s.roster.CountEnrolled(ctx, assignment.CourseID)
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentStatsResponse{}, err
	}

	rollup := buildRollup(submissions, enrolled)
	response := dto.AssignmentStatsResponse{
		AssignmentID:      assignment.ID,
		CourseID:          assignment.CourseID,
		TotalSubmissions:  rollup.total,
		GradedSubmissions: rollup.graded,
		AverageScore:      rollup.averageScore,
		CompletionRate:    rollup.completionRate,
		GradeDistribution: rollup.distribution,
		GeneratedAt:       s.now(),
	}

	s.writeCache(ctx, cacheKey, response)
	span.SetAttributes(attribute.Int64("analytics.total_submissions", rollup.total))

	return response, nil
}

func (s *analyticsService) CourseStats(ctx context.Context, courseID uint) (dto.CourseStatsResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/campus-core-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.course")
	span.SetAttributes(attribute.Int64("analytics.course_id", int64(courseID)))
	defer span.End()

	cacheKey := courseStatsCacheKey(courseID)
	var cached dto.CourseStatsResponse
	if s.readCache(ctx, cacheKey, &cached) {
		cached.CacheHit = true
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		return cached, nil
	}

	if _, err := s.roster.GetCourse(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "course_not_found")
			return dto.CourseStatsResponse{}, ErrCourseNotFound
		}
		span.RecordError(err)
		return dto.CourseStatsResponse{}, err
	}

	published := models.AssignmentStatusPublished
	assignments, assignmentCount, err := s.assignments.List(ctx, repository.AssignmentFilter{CourseID: &courseID, Status: &published})
	if err != nil {
		span.RecordError(err)
		return dto.CourseStatsResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{CourseID: &courseID})
	if err != nil {
		span.RecordError(err)
		return dto.CourseStatsResponse{}, err
	}

	enrolled, err := s.roster.CountEnrolled(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.CourseStatsResponse{}, err
	}

	// Completion for a course means every enrolled student submitting to
	// every published assignment.
	rollup := buildRollup(submissions, enrolled*int64(len(assignments)))
	response := dto.CourseStatsResponse{
		CourseID:          courseID,
		AssignmentCount:   assignmentCount,
		TotalSubmissions:  rollup.total,
		GradedSubmissions: rollup.graded,
		AverageScore:      rollup.averageScore,
		CompletionRate:    rollup.completionRate,
		GradeDistribution: rollup.distribution,
		GeneratedAt:       s.now(),
	}

	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

type rollup struct {
	total          int64
	graded         int64
	averageScore   float64
	completionRate float64
	distribution   dto.GradeDistribution
}

// buildRollup folds the submission set into the derived aggregates. Empty sets
// yield zeros, never a division error.
func buildRollup(submissions []models.Submission, expectedCount int64) rollup {
	result := rollup{
		distribution: dto.GradeDistribution{
			models.GradeA: 0,
			models.GradeB: 0,
			models.GradeC: 0,
			models.GradeD: 0,
			models.GradeF: 0,
		},
	}

	scoreSum := 0.0
	for _, submission := range submissions {
		if !submission.CountsTowardAnalytics() {
			continue
		}
		result.total++

		if submission.GradedAt == nil {
			continue
		}
		result.graded++
		scoreSum += submission.Score
		result.distribution[submission.Grade]++
	}

	if result.graded > 0 {
		result.averageScore = scoreSum / float64(result.graded)
	}

	if expectedCount > 0 {
		rate := float64(result.total) / float64(expectedCount) * 100
		if rate > 100 {
			rate = 100
		}
		if rate < 0 {
			rate = 0
		}
		result.completionRate = rate
	}

	return result
}

func (s *analyticsService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read analytics cache")
		}
		return false
	}

	return json.Unmarshal([]byte(cached), target) == nil
}

func (s *analyticsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store analytics cache")
	}
}
