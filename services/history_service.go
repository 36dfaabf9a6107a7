package services

import (
	"context"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/repository"
)

type HistoryService struct {
	store repository.HistoryStore
}

func NewHistoryService(store repository.HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

// Add records one attempt of userID
func (s *HistoryService) Add(ctx context.Context, userID string, history *models.ProblemHistory) ([]models.ProblemHistory, error) {
	if err := validateUserID("uid", userID); err != nil {
		return nil, err
	}
	if history == nil {
		return nil, invalid("body", "is required")
	}
	if err := validateID("problem_id", history.ProblemID); err != nil {
		return nil, err
	}
	switch history.Status {
	case "", models.HistoryStatusCorrect, models.HistoryStatusWrong:
	default:
		return nil, invalid("status", "must be correct or wrong, got %q", history.Status)
	}

	history.ID = 0
	history.UID = userID
	return s.store.CreateHistory(ctx, history)
}

// GetTestCenterID returns the test center and creation time of a test result
func (s *HistoryService) GetTestCenterID(ctx context.Context, testResultID int64) (*models.TestResult, error) {
	if err := validateID("test_result_id", testResultID); err != nil {
		return nil, err
	}
	return s.store.GetTestResult(ctx, testResultID)
}

// GetProblemHistory returns the answers recorded in a test center ordered by problem id
func (s *HistoryService) GetProblemHistory(ctx context.Context, testCenterID int64) ([]models.ProblemHistory, error) {
	if err := validateID("test_center_id", testCenterID); err != nil {
		return nil, err
	}
	return s.store.GetHistoryByTestCenter(ctx, testCenterID)
}
