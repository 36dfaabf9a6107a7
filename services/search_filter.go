package services

import (
	"github.com/examroom/examroom/backend/models"
)

// SearchStatus narrows a search by the caller's attempts
type SearchStatus string

const (
	SearchStatusAll      SearchStatus = ""
	SearchStatusSolved   SearchStatus = "solved"   // at least one attempt
	SearchStatusUnsolved SearchStatus = "unsolved" // no attempt
	SearchStatusWrong    SearchStatus = "wrong"    // latest attempt on the problem was wrong
)

func (s SearchStatus) Validate() error {
	switch s {
	case SearchStatusAll, SearchStatusSolved, SearchStatusUnsolved, SearchStatusWrong:
		return nil
	default:
		return invalid("status", "must be one of solved, unsolved, wrong, got %q", string(s))
	}
}

// FilterByStatus keeps the problems matching status given one user's attempts. The order
// of problems is preserved and attempts may arrive in any order.
func FilterByStatus(problems []models.Problem, attempts []models.ProblemHistory, status SearchStatus) []models.Problem {
	if status == SearchStatusAll {
		return problems
	}

	latest := make(map[int64]models.ProblemHistory, len(attempts))
	for _, a := range attempts {
		current, ok := latest[a.ProblemID]
		if !ok || newerAttempt(a, current) {
			latest[a.ProblemID] = a
		}
	}

	filtered := make([]models.Problem, 0, len(problems))
	for _, p := range problems {
		attempt, attempted := latest[p.ID]
		var keep bool
		switch status {
		case SearchStatusSolved:
			keep = attempted
		case SearchStatusUnsolved:
			keep = !attempted
		case SearchStatusWrong:
			keep = attempted && attempt.Status == models.HistoryStatusWrong
		}
		if keep {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// newerAttempt orders attempts by created_at, then by id for rows written in the same instant
func newerAttempt(a, b models.ProblemHistory) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
