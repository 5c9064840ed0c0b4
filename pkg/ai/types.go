package ai

import "context"

// ScreenInput carries the text artefacts needed to screen one free-form answer.
type ScreenInput struct {
	AssignmentTitle string
	QuestionPrompt  string
	AnswerText      string
}

// ScreenResult is the structured verdict returned by a plagiarism screener.
// Score is a likelihood in [0,1]; Report is a short human-readable rationale.
type ScreenResult struct {
	Score  float64                `json:"score"`
	Report string                 `json:"report"`
	Raw    map[string]interface{} `json:"raw,omitempty"`
}

// Screener estimates how likely a submitted answer is plagiarised or generated.
type Screener interface {
	Screen(ctx context.Context, input ScreenInput) (ScreenResult, error)
}
