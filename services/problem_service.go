package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/repository"
	"golang.org/x/sync/errgroup"
)

// AddMultipleResult reports the links present after AddMultiple and how many of them it created
type AddMultipleResult struct {
	Rows          []models.WorkbookProblem `json:"data"`
	InsertedCount int                      `json:"inserted_count"`
}

// ProblemService exposes the problem operations used by the board, the editor and the workbooks
type ProblemService struct {
	problems repository.ProblemStore
	history  repository.HistoryStore
}

func NewProblemService(problems repository.ProblemStore, history repository.HistoryStore) *ProblemService {
	return &ProblemService{problems: problems, history: history}
}

// GetAllShared returns the board: shared problems with their category, likes and the
// caller's own attempts.
func (s *ProblemService) GetAllShared(ctx context.Context, userID string) ([]models.Problem, error) {
	if err := validateUserID("user_id", userID); err != nil {
		return nil, err
	}
	return s.problems.GetSharedProblems(ctx, userID)
}

func (s *ProblemService) GetAllByUserID(ctx context.Context, userID string) ([]models.Problem, error) {
	if err := validateUserID("user_id", userID); err != nil {
		return nil, err
	}
	return s.problems.GetProblemsByOwner(ctx, userID, false)
}

func (s *ProblemService) GetAllSharedByUserID(ctx context.Context, userID string) ([]models.Problem, error) {
	if err := validateUserID("user_id", userID); err != nil {
		return nil, err
	}
	return s.problems.GetProblemsByOwner(ctx, userID, true)
}

// Search filters problems by keyword and creation day, then by the caller's attempt status.
// Dates are YYYY-MM-DD and both ends are inclusive.
func (s *ProblemService) Search(ctx context.Context, userID, keyword, startDate, endDate string, status SearchStatus) ([]models.Problem, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}
	if status != SearchStatusAll {
		if err := validateUserID("user_id", userID); err != nil {
			return nil, err
		}
	}

	from, err := parseDay("start_date", startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDay("end_date", endDate)
	if err != nil {
		return nil, err
	}
	if from != nil && end != nil && end.Before(*from) {
		return nil, invalid("end_date", "must not be before start_date")
	}

	query := repository.ProblemQuery{Keyword: keyword, CreatedFrom: from}
	if end != nil {
		before := end.AddDate(0, 0, 1)
		query.CreatedBefore = &before
	}

	problems, err := s.problems.SearchProblems(ctx, query)
	if err != nil {
		return nil, err
	}
	if status == SearchStatusAll {
		return problems, nil
	}

	attempts, err := s.history.GetHistoryByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load attempts for status filter: %w", err)
	}
	return FilterByStatus(problems, attempts, status), nil
}

// Add creates problem for ownerID and links it into workbookID. The problem is not rolled
// back when linking fails; the created rows are returned alongside the error.
func (s *ProblemService) Add(ctx context.Context, ownerID string, workbookID int64, problem *models.Problem) ([]models.Problem, error) {
	if err := validateUserID("uid", ownerID); err != nil {
		return nil, err
	}
	if err := validateID("workbook_id", workbookID); err != nil {
		return nil, err
	}
	if problem == nil {
		return nil, invalid("body", "is required")
	}
	if err := validateProblemType(problem.ProblemType); err != nil {
		return nil, err
	}
	if err := validateOptions(problem); err != nil {
		return nil, err
	}

	rows, err := s.problems.CreateProblem(ctx, problem.ForInsert(ownerID))
	if err != nil {
		return nil, err
	}

	link := &models.WorkbookProblem{WorkbookID: workbookID, ProblemID: rows[0].ID}
	if _, err := s.problems.CreateWorkbookProblem(ctx, link); err != nil {
		slog.Error("Problem created but not linked to workbook", "error", err, "problem_id", rows[0].ID, "workbook_id", workbookID)
		return rows, fmt.Errorf("link problem %d to workbook %d: %w", rows[0].ID, workbookID, err)
	}

	slog.Info("Problem added to workbook", "problem_id", rows[0].ID, "workbook_id", workbookID, "uid", ownerID)
	return rows, nil
}

// AddMultiple links existing problems into workbookID. Links that already exist are kept, so
// repeating a call reports zero inserted rows.
func (s *ProblemService) AddMultiple(ctx context.Context, workbookID int64, problemIDs []int64) (*AddMultipleResult, error) {
	if err := validateID("workbook_id", workbookID); err != nil {
		return nil, err
	}
	if len(problemIDs) == 0 {
		return nil, invalid("problem_ids", "must not be empty")
	}

	ids := make([]int64, 0, len(problemIDs))
	seen := make(map[int64]bool, len(problemIDs))
	for _, id := range problemIDs {
		if err := validateID("problem_ids", id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	problems := make([]*models.Problem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			problem, err := s.problems.GetProblem(gctx, id)
			if err != nil {
				return fmt.Errorf("get problem %d: %w", id, err)
			}
			problems[i] = problem
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("Failed to load problems for workbook", "error", err, "workbook_id", workbookID)
		return nil, err
	}

	links := make([]models.WorkbookProblem, 0, len(problems))
	for _, problem := range problems {
		if err := validateOptions(problem); err != nil {
			return nil, err
		}
		links = append(links, models.WorkbookProblem{WorkbookID: workbookID, ProblemID: problem.ID})
	}

	existing, err := s.problems.GetWorkbookProblems(ctx, workbookID, ids)
	if err != nil {
		return nil, err
	}
	before := make(map[string]bool, len(existing))
	for _, link := range existing {
		before[link.Key()] = true
	}

	rows, err := s.problems.UpsertWorkbookProblems(ctx, links)
	if err != nil {
		return nil, fmt.Errorf("upsert workbook problems: %w", err)
	}

	inserted := 0
	for _, row := range rows {
		if !before[row.Key()] {
			inserted++
		}
	}

	slog.Info("Problems added to workbook", "workbook_id", workbookID, "requested", len(ids), "inserted", inserted)
	return &AddMultipleResult{Rows: rows, InsertedCount: inserted}, nil
}

// Update merges patch into problem id when ownerID owns it. A problem owned by someone else
// is left alone and no rows are returned.
func (s *ProblemService) Update(ctx context.Context, ownerID string, id int64, patch models.ProblemPatch) ([]models.Problem, error) {
	if err := validateUserID("uid", ownerID); err != nil {
		return nil, err
	}
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	if patch.ProblemType != nil {
		if err := validateProblemType(*patch.ProblemType); err != nil {
			return nil, err
		}
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, invalid("body", "has no fields to update")
	}
	return s.problems.UpdateProblem(ctx, id, ownerID, fields)
}

func (s *ProblemService) DeleteOne(ctx context.Context, ownerID string, id int64) ([]models.Problem, error) {
	if err := validateUserID("uid", ownerID); err != nil {
		return nil, err
	}
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	return s.problems.DeleteProblem(ctx, id, ownerID)
}

// GetByID returns exactly one problem with its category, or repository.ErrNotFound
func (s *ProblemService) GetByID(ctx context.Context, id int64) (*models.Problem, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	return s.problems.GetProblem(ctx, id)
}

// CheckIsShared reports whether uid bookmarked problemID. It reports false both when no
// bookmark exists and when the lookup failed; only the error tells the two apart.
func (s *ProblemService) CheckIsShared(ctx context.Context, uid string, problemID int64) (bool, error) {
	if err := validateUserID("uid", uid); err != nil {
		return false, err
	}
	if err := validateID("problem_id", problemID); err != nil {
		return false, err
	}

	if _, err := s.problems.GetBookmark(ctx, uid, problemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		slog.Error("Failed to check bookmark", "error", err, "uid", uid, "problem_id", problemID)
		return false, err
	}
	return true, nil
}

func (s *ProblemService) AddShare(ctx context.Context, uid string, problemID int64) ([]models.SharedProblem, error) {
	if err := validateUserID("uid", uid); err != nil {
		return nil, err
	}
	if err := validateID("problem_id", problemID); err != nil {
		return nil, err
	}
	return s.problems.CreateBookmark(ctx, &models.SharedProblem{UID: uid, ProblemID: problemID})
}

func (s *ProblemService) RemoveShare(ctx context.Context, uid string, problemID int64) ([]models.SharedProblem, error) {
	if err := validateUserID("uid", uid); err != nil {
		return nil, err
	}
	if err := validateID("problem_id", problemID); err != nil {
		return nil, err
	}
	return s.problems.DeleteBookmark(ctx, uid, problemID)
}
