package service

import (
	"fmt"
	"math"

	"github.com/noah-isme/campus-core-api/internal/models"
)

const pointsEpsilon = 1e-9

// RubricTotal sums the criterion points. This is the single value percentage
// calculations are based on.
func RubricTotal(criteria []models.RubricCriterion) float64 {
	total := 0.0
	for _, criterion := range criteria {
		total += criterion.Points
	}
	return total
}

// ValidateRubric checks the structural rules of a scoring rubric: at least one
// criterion, named criteria, non-negative points, weights within 0-100, and a
// total that matches the assignment's declared total points.
func ValidateRubric(criteria []models.RubricCriterion, totalPoints float64) error {
	if len(criteria) == 0 {
		return &InputError{Msg: "rubric must define at least one criterion"}
	}

	for i, criterion := range criteria {
		if criterion.Name == "" {
			return &InputError{Msg: fmt.Sprintf("rubric criterion %d must have a name", i+1)}
		}
		if criterion.Points < 0 {
			return &InputError{Msg: fmt.Sprintf("rubric criterion %q must not have negative points", criterion.Name)}
		}
		if criterion.Weight < 0 || criterion.Weight > 100 {
			return &InputError{Msg: fmt.Sprintf("rubric criterion %q weight must be between 0 and 100", criterion.Name)}
		}
	}

	if math.Abs(RubricTotal(criteria)-totalPoints) > pointsEpsilon {
		return &InputError{Msg: fmt.Sprintf("rubric criterion points must sum to the assignment total of %g", totalPoints)}
	}

	return nil
}

// ValidateQuestions checks the question list: known types, non-negative points,
// and for multiple-choice at least two options with exactly one flagged correct.
func ValidateQuestions(questions []models.Question) error {
	for i, question := range questions {
		if question.Prompt == "" {
			return &InputError{Msg: fmt.Sprintf("question %d must have a prompt", i+1)}
		}
		if question.Points < 0 {
			return &InputError{Msg: fmt.Sprintf("question %d must not have negative points", i+1)}
		}

		if question.Type != models.QuestionTypeMultipleChoice {
			continue
		}

		if len(question.Options) < 2 {
			return &InputError{Msg: fmt.Sprintf("question %d must offer at least two options", i+1)}
		}

		correct := 0
		for _, option := range question.Options {
			if option.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return &InputError{Msg: fmt.Sprintf("question %d must flag exactly one option as correct", i+1)}
		}
	}

	return nil
}
