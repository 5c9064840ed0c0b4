package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-core-api/internal/models"
)

func analyticsFixtures(t *testing.T) (*fakeSubmissionRepo, *fakeAssignmentRepo, *fakeRosterRepo) {
	t.Helper()

	assignment := models.Assignment{
		ID:          30,
		CourseID:    5,
		Title:       "Final Project",
		Status:      models.AssignmentStatusPublished,
		DueDate:     time.Now().Add(48 * time.Hour),
		TotalPoints: 100,
	}

	assignments := newFakeAssignmentRepo()
	assignments.add(assignment)

	roster := newFakeRosterRepo()
	studentIDs := make([]uint, 0, 20)
	for i := uint(1); i <= 20; i++ {
		studentIDs = append(studentIDs, 200+i)
	}
	roster.enroll(5, studentIDs...)

	submissions := newFakeSubmissionRepo()
	submittedAt := time.Now().Add(-time.Hour)
	gradedAt := time.Now().Add(-30 * time.Minute)
	for i := 0; i < 15; i++ {
		submission := models.Submission{
			AssignmentID: 30,
			CourseID:     5,
			StudentID:    uint(201 + i),
			Status:       models.SubmissionStatusSubmitted,
			SubmittedAt:  &submittedAt,
			MaxScore:     100,
		}
		// Grade ten of the fifteen: five A's at 95 and five C's at 75.
		if i < 10 {
			submission.Status = models.SubmissionStatusGraded
			submission.GradedAt = &gradedAt
			if i < 5 {
				submission.Score = 95
				submission.Percentage = 95
				submission.Grade = models.GradeA
			} else {
				submission.Score = 75
				submission.Percentage = 75
				submission.Grade = models.GradeC
			}
		}
		submissions.add(submission)
	}

	return submissions, assignments, roster
}

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestAssignmentStatsRollup(t *testing.T) {
	submissions, assignments, roster := analyticsFixtures(t)
	svc := NewAnalyticsService(submissions, assignments, roster, testCache(t), time.Minute, testLogger())

	stats, err := svc.AssignmentStats(context.Background(), 30)
	require.NoError(t, err)

	require.Equal(t, int64(15), stats.TotalSubmissions)
	require.Equal(t, int64(10), stats.GradedSubmissions)
	require.InDelta(t, 85.0, stats.AverageScore, 1e-9)
	require.InDelta(t, 75.0, stats.CompletionRate, 1e-9)
	require.Equal(t, int64(5), stats.GradeDistribution[models.GradeA])
	require.Equal(t, int64(5), stats.GradeDistribution[models.GradeC])
	require.Equal(t, int64(0), stats.GradeDistribution[models.GradeF])
	require.False(t, stats.CacheHit)
}

func TestAssignmentStatsServedFromCache(t *testing.T) {
	submissions, assignments, roster := analyticsFixtures(t)
	svc := NewAnalyticsService(submissions, assignments, roster, testCache(t), time.Minute, testLogger())

	first, err := svc.AssignmentStats(context.Background(), 30)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	// Mutate the store; the cached aggregate must still be served.
	submittedAt := time.Now()
	submissions.add(models.Submission{
		AssignmentID: 30,
		CourseID:     5,
		StudentID:    299,
		Status:       models.SubmissionStatusSubmitted,
		SubmittedAt:  &submittedAt,
	})

	second, err := svc.AssignmentStats(context.Background(), 30)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.TotalSubmissions, second.TotalSubmissions)
}

func TestAssignmentStatsIgnoresDrafts(t *testing.T) {
	submissions, assignments, roster := analyticsFixtures(t)
	submissions.add(models.Submission{
		AssignmentID: 30,
		CourseID:     5,
		StudentID:    298,
		Status:       models.SubmissionStatusDraft,
	})
	svc := NewAnalyticsService(submissions, assignments, roster, nil, time.Minute, testLogger())

	stats, err := svc.AssignmentStats(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, int64(15), stats.TotalSubmissions)
}

func TestAssignmentStatsUnknownAssignment(t *testing.T) {
	submissions, assignments, roster := analyticsFixtures(t)
	svc := NewAnalyticsService(submissions, assignments, roster, nil, time.Minute, testLogger())

	_, err := svc.AssignmentStats(context.Background(), 404)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestAssignmentStatsEmptySet(t *testing.T) {
	assignments := newFakeAssignmentRepo()
	assignments.add(models.Assignment{ID: 31, CourseID: 6, Status: models.AssignmentStatusPublished, DueDate: time.Now(), TotalPoints: 50})
	roster := newFakeRosterRepo()
	svc := NewAnalyticsService(newFakeSubmissionRepo(), assignments, roster, nil, time.Minute, testLogger())

	// No course enrollment either, so completion must stay at zero.
	roster.courses[6] = models.Course{ID: 6, Code: "EMPTY-1", Title: "Empty"}

	stats, err := svc.AssignmentStats(context.Background(), 31)
	require.NoError(t, err)
	require.Zero(t, stats.TotalSubmissions)
	require.Zero(t, stats.AverageScore)
	require.Zero(t, stats.CompletionRate)
}

func TestCourseStatsRollsUpAcrossAssignments(t *testing.T) {
	submissions, assignments, roster := analyticsFixtures(t)
	// A second published assignment doubles the expected submission count.
	assignments.add(models.Assignment{
		ID:          32,
		CourseID:    5,
		Title:       "Essay",
		Status:      models.AssignmentStatusPublished,
		DueDate:     time.Now().Add(72 * time.Hour),
		TotalPoints: 100,
	})
	svc := NewAnalyticsService(submissions, assignments, roster, testCache(t), time.Minute, testLogger())

	stats, err := svc.CourseStats(context.Background(), 5)
	require.NoError(t, err)

	require.Equal(t, int64(2), stats.AssignmentCount)
	require.Equal(t, int64(15), stats.TotalSubmissions)
	// 15 submissions out of 20 students times 2 assignments.
	require.InDelta(t, 37.5, stats.CompletionRate, 1e-9)
}

func TestCourseStatsUnknownCourse(t *testing.T) {
	submissions, assignments, roster := analyticsFixtures(t)
	svc := NewAnalyticsService(submissions, assignments, roster, nil, time.Minute, testLogger())

	_, err := svc.CourseStats(context.Background(), 404)
	require.ErrorIs(t, err, ErrCourseNotFound)
}
