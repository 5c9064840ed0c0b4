package dto

// GradeSubmissionRequest is the faculty payload for manually scoring a
// submission. Score is the raw score before any late penalty.
type GradeSubmissionRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback"`
}

// BulkGradeResult summarizes a completed grade import.
type BulkGradeResult struct {
	GradedCount int      `json:"graded_count"`
	Errors      []string `json:"errors,omitempty"`
}
