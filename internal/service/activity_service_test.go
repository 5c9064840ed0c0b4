package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
)

type fakeActivityLogRepo struct {
	entries []models.ActivityLog
	nextID  uint
}

func (f *fakeActivityLogRepo) Create(_ context.Context, entry *models.ActivityLog) error {
	f.nextID++
	entry.ID = f.nextID
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeActivityLogRepo) List(_ context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	var matched []models.ActivityLog
	for _, entry := range f.entries {
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		matched = append(matched, entry)
	}

	total := int64(len(matched))
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		if offset >= len(matched) {
			return nil, total, nil
		}
		end := offset + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	return matched, total, nil
}

func newActivityTestService() (ActivityService, *fakeActivityLogRepo) {
	repo := &fakeActivityLogRepo{}
	svc := NewActivityService(repo, validator.New(validator.WithRequiredStructEnabled()), testLogger())
	return svc, repo
}

func TestRecordNormalizesActorAndAction(t *testing.T) {
	svc, repo := newActivityTestService()

	entityID := uint(42)
	result, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    9,
		ActorRole:  "  Faculty ",
		Action:     " Assignment.Created ",
		EntityType: "Assignment",
		EntityID:   &entityID,
	})
	require.NoError(t, err)

	require.Equal(t, "faculty", result.ActorRole)
	require.Equal(t, "assignment.created", result.Action)
	require.Equal(t, "assignment", result.EntityType)
	require.Len(t, repo.entries, 1)
}

func TestRecordDefaultsMissingRoleToSystem(t *testing.T) {
	svc, _ := newActivityTestService()

	result, err := svc.Record(context.Background(), ActivityEntry{
		Action:     "grades.imported",
		EntityType: "assignment",
	})
	require.NoError(t, err)
	require.Equal(t, "system", result.ActorRole)
}

func TestRecordRedactsSensitiveMetadata(t *testing.T) {
	svc, repo := newActivityTestService()

	_, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    9,
		ActorRole:  "faculty",
		Action:     "submission.graded",
		EntityType: "submission",
		Metadata: map[string]interface{}{
			"student_email": "jamie@example.edu",
			"access_token":  "abc123",
			"score":         81.0,
		},
	})
	require.NoError(t, err)

	stored := repo.entries[0].Metadata
	require.Equal(t, "***", stored["student_email"])
	require.Equal(t, "***", stored["access_token"])
	require.Equal(t, 81.0, stored["score"])
}

func TestRecordRequiresAction(t *testing.T) {
	svc, _ := newActivityTestService()

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "assignment"})
	require.Error(t, err)
}

func TestListPaginatesAndFilters(t *testing.T) {
	svc, repo := newActivityTestService()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.ActivityLog{
			ActorID:    9,
			ActorRole:  "faculty",
			Action:     "assignment.created",
			EntityType: "assignment",
		}))
	}
	require.NoError(t, repo.Create(context.Background(), &models.ActivityLog{
		ActorID:    1,
		ActorRole:  "admin",
		Action:     "assignment.deleted",
		EntityType: "assignment",
	}))

	result, err := svc.List(context.Background(), dto.ActivityListRequest{
		Page:     2,
		PageSize: 2,
		Action:   "assignment.created",
	})
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	require.Equal(t, int64(5), result.Pagination.TotalItems)
	require.Equal(t, 3, result.Pagination.TotalPages)
	require.Equal(t, 2, result.Pagination.Page)
}

func TestListRejectsOversizedPage(t *testing.T) {
	svc, _ := newActivityTestService()

	_, err := svc.List(context.Background(), dto.ActivityListRequest{PageSize: 500})
	require.Error(t, err)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}
