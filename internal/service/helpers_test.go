package service

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeSubmissionRepo is an in-memory SubmissionRepository. InTx snapshots the
// store and restores it on error, mirroring transactional rollback.
type fakeSubmissionRepo struct {
	submissions  map[uint]models.Submission
	histories    []models.SubmissionGradeHistory
	nextID       uint
	updateCalls  int
	failUpdateAt int

	// assignmentSource, when set, mimics the repository's Assignment preload.
	assignmentSource *fakeAssignmentRepo
}

func (f *fakeSubmissionRepo) hydrate(submission models.Submission) models.Submission {
	if submission.Assignment.ID == 0 && f.assignmentSource != nil {
		if assignment, ok := f.assignmentSource.assignments[submission.AssignmentID]; ok {
			submission.Assignment = assignment
		}
	}
	return submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: map[uint]models.Submission{}}
}

func (f *fakeSubmissionRepo) add(submission models.Submission) {
	if submission.ID == 0 {
		f.nextID++
		submission.ID = f.nextID
	} else if submission.ID > f.nextID {
		f.nextID = submission.ID
	}
	f.submissions[submission.ID] = submission
}

func (f *fakeSubmissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	var result []models.Submission
	for _, submission := range f.submissions {
		if filter.AssignmentID != nil && submission.AssignmentID != *filter.AssignmentID {
			continue
		}
		if filter.CourseID != nil && submission.CourseID != *filter.CourseID {
			continue
		}
		if filter.StudentID != nil && submission.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		result = append(result, submission)
	}
	return result, nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	submission, ok := f.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return f.hydrate(submission), nil
}

func (f *fakeSubmissionRepo) GetByIDForUpdate(ctx context.Context, id uint) (models.Submission, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSubmissionRepo) GetByAssignmentAndStudent(_ context.Context, assignmentID, studentID uint) (models.Submission, error) {
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return f.hydrate(submission), nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	for _, existing := range f.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			return errors.New("duplicate submission for assignment and student")
		}
	}
	f.nextID++
	submission.ID = f.nextID
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	f.updateCalls++
	if f.failUpdateAt > 0 && f.updateCalls == f.failUpdateAt {
		return errors.New("forced update failure")
	}
	if _, ok := f.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) ReplaceAnswers(_ context.Context, submissionID uint, answers []models.Answer) error {
	submission, ok := f.submissions[submissionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	submission.Answers = answers
	f.submissions[submissionID] = submission
	return nil
}

func (f *fakeSubmissionRepo) CreateHistory(_ context.Context, history *models.SubmissionGradeHistory) error {
	f.histories = append(f.histories, *history)
	return nil
}

func (f *fakeSubmissionRepo) InTx(_ context.Context, fn func(repo repository.SubmissionRepository) error) error {
	snapshot := make(map[uint]models.Submission, len(f.submissions))
	for id, submission := range f.submissions {
		snapshot[id] = submission
	}
	historySnapshot := append([]models.SubmissionGradeHistory(nil), f.histories...)

	if err := fn(f); err != nil {
		f.submissions = snapshot
		f.histories = historySnapshot
		return err
	}
	return nil
}

// fakeAssignmentRepo is an in-memory AssignmentRepository.
type fakeAssignmentRepo struct {
	assignments map[uint]models.Assignment
	nextID      uint
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{assignments: map[uint]models.Assignment{}}
}

func (f *fakeAssignmentRepo) add(assignment models.Assignment) {
	if assignment.ID == 0 {
		f.nextID++
		assignment.ID = f.nextID
	} else if assignment.ID > f.nextID {
		f.nextID = assignment.ID
	}
	f.assignments[assignment.ID] = assignment
}

func (f *fakeAssignmentRepo) List(_ context.Context, filter repository.AssignmentFilter) ([]models.Assignment, int64, error) {
	var result []models.Assignment
	for _, assignment := range f.assignments {
		if filter.CourseID != nil && assignment.CourseID != *filter.CourseID {
			continue
		}
		if filter.Status != nil && assignment.Status != *filter.Status {
			continue
		}
		result = append(result, assignment)
	}
	return result, int64(len(result)), nil
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	f.nextID++
	assignment.ID = f.nextID
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(_ context.Context, assignment *models.Assignment) error {
	if _, ok := f.assignments[assignment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) UpdateStatus(_ context.Context, id uint, status string) error {
	assignment, ok := f.assignments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	assignment.Status = status
	f.assignments[id] = assignment
	return nil
}

func (f *fakeAssignmentRepo) Delete(_ context.Context, id uint) error {
	if _, ok := f.assignments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.assignments, id)
	return nil
}

// fakeRosterRepo answers enrollment lookups from fixed fixtures.
type fakeRosterRepo struct {
	courses  map[uint]models.Course
	enrolled map[uint]map[uint]bool
}

func newFakeRosterRepo() *fakeRosterRepo {
	return &fakeRosterRepo{
		courses:  map[uint]models.Course{},
		enrolled: map[uint]map[uint]bool{},
	}
}

func (f *fakeRosterRepo) enroll(courseID uint, studentIDs ...uint) {
	if _, ok := f.courses[courseID]; !ok {
		f.courses[courseID] = models.Course{ID: courseID, Code: "TEST-101", Title: "Test Course"}
	}
	if f.enrolled[courseID] == nil {
		f.enrolled[courseID] = map[uint]bool{}
	}
	for _, id := range studentIDs {
		f.enrolled[courseID][id] = true
	}
}

func (f *fakeRosterRepo) CountEnrolled(_ context.Context, courseID uint) (int64, error) {
	return int64(len(f.enrolled[courseID])), nil
}

func (f *fakeRosterRepo) ListEnrolledStudentIDs(_ context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	for id := range f.enrolled[courseID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRosterRepo) IsEnrolled(_ context.Context, courseID, studentID uint) (bool, error) {
	return f.enrolled[courseID][studentID], nil
}

func (f *fakeRosterRepo) GetCourse(_ context.Context, courseID uint) (models.Course, error) {
	course, ok := f.courses[courseID]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	return course, nil
}

// fakeActivityRecorder captures audit entries.
type fakeActivityRecorder struct {
	entries []ActivityEntry
}

func (f *fakeActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	f.entries = append(f.entries, entry)
	return dto.ActivityResponse{Action: entry.Action}, nil
}

// fakeEvents counts change notifications.
type fakeEvents struct {
	calls []uint
}

func (f *fakeEvents) SubmissionsChanged(_ context.Context, _ uint, assignmentID uint) {
	f.calls = append(f.calls, assignmentID)
}
