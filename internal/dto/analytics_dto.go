package dto

import "time"

// GradeDistribution is a histogram of letter grades across graded submissions.
type GradeDistribution map[string]int64

// AssignmentStatsResponse aggregates one assignment's submission set.
type AssignmentStatsResponse struct {
	AssignmentID      uint              `json:"assignment_id"`
	CourseID          uint              `json:"course_id"`
	TotalSubmissions  int64             `json:"total_submissions"`
	GradedSubmissions int64             `json:"graded_submissions"`
	AverageScore      float64           `json:"average_score"`
	CompletionRate    float64           `json:"completion_rate"`
	GradeDistribution GradeDistribution `json:"grade_distribution"`
	GeneratedAt       time.Time         `json:"generated_at"`
	CacheHit          bool              `json:"cache_hit"`
}

// CourseStatsResponse aggregates submissions across a course's assignments.
type CourseStatsResponse struct {
	CourseID          uint              `json:"course_id"`
	AssignmentCount   int64             `json:"assignment_count"`
	TotalSubmissions  int64             `json:"total_submissions"`
	GradedSubmissions int64             `json:"graded_submissions"`
	AverageScore      float64           `json:"average_score"`
	CompletionRate    float64           `json:"completion_rate"`
	GradeDistribution GradeDistribution `json:"grade_distribution"`
	GeneratedAt       time.Time         `json:"generated_at"`
	CacheHit          bool              `json:"cache_hit"`
}
