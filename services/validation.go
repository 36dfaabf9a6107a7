package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/google/uuid"
)

// ErrValidation matches every *ValidationError with errors.Is
var ErrValidation = errors.New("validation failed")

// ValidationError is raised before any remote call is made
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: field + " " + fmt.Sprintf(format, args...)}
}

const dateLayout = "2006-01-02"

// validateOptions requires the four options of a multiple choice problem
func validateOptions(p *models.Problem) error {
	if p.ProblemType != models.ProblemTypeMultipleChoice {
		return nil
	}
	options := []struct {
		name  string
		value string
	}{
		{"option_one", p.OptionOne},
		{"option_two", p.OptionTwo},
		{"option_three", p.OptionThree},
		{"option_four", p.OptionFour},
	}
	for _, opt := range options {
		if strings.TrimSpace(opt.value) == "" {
			return &ValidationError{Field: opt.name, Message: fmt.Sprintf("%s: %s is empty", p.Title, opt.name)}
		}
	}
	return nil
}

func validateProblemType(t models.ProblemType) error {
	switch t {
	case models.ProblemTypeMultipleChoice, models.ProblemTypeOX:
		return nil
	default:
		return invalid("problem_type", "must be multiple_choice or ox, got %q", t)
	}
}

func validateUserID(field, id string) error {
	if id == "" {
		return invalid(field, "is required")
	}
	if err := uuid.Validate(id); err != nil {
		return invalid(field, "must be a uuid")
	}
	return nil
}

func validateID(field string, id int64) error {
	if id <= 0 {
		return invalid(field, "must be a positive id")
	}
	return nil
}

// parseDay parses a YYYY-MM-DD date as midnight UTC. Empty input yields nil.
func parseDay(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, invalid(field, "must be formatted as YYYY-MM-DD")
	}
	return &day, nil
}
