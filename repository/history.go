package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/examroom/examroom/backend/models"
	"gorm.io/gorm"
)

// CreateHistory saves one attempt using GORM
func (r *GORMRepository) CreateHistory(ctx context.Context, history *models.ProblemHistory) ([]models.ProblemHistory, error) {
	if err := r.db.WithContext(ctx).Create(history).Error; err != nil {
		slog.Error("Failed to save problem history", "error", err, "uid", history.UID, "problem_id", history.ProblemID)
		return nil, fmt.Errorf("failed to save problem history: %w", mapGORMError(err))
	}

	slog.Info("Problem history saved", "history_id", history.ID, "uid", history.UID, "problem_id", history.ProblemID)
	return []models.ProblemHistory{*history}, nil
}

// GetHistoryByUser retrieves every attempt of a user, most recent first
func (r *GORMRepository) GetHistoryByUser(ctx context.Context, userID string) ([]models.ProblemHistory, error) {
	var history []models.ProblemHistory

	if err := r.db.WithContext(ctx).
		Where("uid = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&history).Error; err != nil {
		slog.Error("Failed to get problem history by user", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get problem history by user: %w", err)
	}

	return history, nil
}

// GetHistoryByTestCenter retrieves the answers recorded in a test center ordered by problem
func (r *GORMRepository) GetHistoryByTestCenter(ctx context.Context, testCenterID int64) ([]models.ProblemHistory, error) {
	var history []models.ProblemHistory

	if err := r.db.WithContext(ctx).
		Select("problem_id", "my_option", "status").
		Where("test_center_id = ?", testCenterID).
		Order("problem_id ASC").
		Find(&history).Error; err != nil {
		slog.Error("Failed to get problem history by test center", "error", err, "test_center_id", testCenterID)
		return nil, fmt.Errorf("failed to get problem history by test center: %w", err)
	}

	return history, nil
}

// GetTestResult retrieves the test center and creation time of a test result
func (r *GORMRepository) GetTestResult(ctx context.Context, id int64) (*models.TestResult, error) {
	var result models.TestResult

	if err := r.db.WithContext(ctx).
		Select("id", "test_center_id", "created_at").
		Where("id = ?", id).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("test result %d: %w", id, ErrNotFound)
		}
		slog.Error("Failed to get test result", "error", err, "test_result_id", id)
		return nil, fmt.Errorf("failed to get test result: %w", err)
	}

	return &result, nil
}
