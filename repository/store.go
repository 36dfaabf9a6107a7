package repository

import (
	"context"
	"errors"
	"time"

	"github.com/examroom/examroom/backend/models"
)

var (
	// ErrNotFound is returned when an operation required exactly one row and found none.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("record already exists")
)

// ProblemQuery narrows a problem search. Zero fields do not filter.
type ProblemQuery struct {
	Keyword       string     // case-insensitive substring of title or question
	CreatedFrom   *time.Time // inclusive
	CreatedBefore *time.Time // exclusive
}

// InviteAcceptance is the outcome of accepting an invite
type InviteAcceptance struct {
	Invite     models.Invite     `json:"invite"`
	Membership models.TestCenter `json:"membership"`
}

type InviteStore interface {
	GetInvitesByTarget(ctx context.Context, targetUID string) ([]models.Invite, error)
	CreateInvite(ctx context.Context, invite *models.Invite) ([]models.Invite, error)
	// AcceptInvite marks invite id as participating and upserts the membership of userID
	// keyed on (uid, test_center_id). Only an invite addressed to userID matches; otherwise
	// ErrNotFound is returned and the membership is never written.
	AcceptInvite(ctx context.Context, id int64, userID string, now time.Time) (*InviteAcceptance, error)
	// DeleteInvite removes invite id when it is addressed to userID
	DeleteInvite(ctx context.Context, id int64, userID string) ([]models.Invite, error)
}

type ProblemStore interface {
	GetSharedProblems(ctx context.Context, userID string) ([]models.Problem, error)
	GetProblemsByOwner(ctx context.Context, ownerID string, sharedOnly bool) ([]models.Problem, error)
	SearchProblems(ctx context.Context, query ProblemQuery) ([]models.Problem, error)
	GetProblem(ctx context.Context, id int64) (*models.Problem, error)
	CreateProblem(ctx context.Context, problem *models.Problem) ([]models.Problem, error)
	// UpdateProblem and DeleteProblem only touch rows owned by ownerID; a problem owned by
	// someone else yields no rows.
	UpdateProblem(ctx context.Context, id int64, ownerID string, fields map[string]interface{}) ([]models.Problem, error)
	DeleteProblem(ctx context.Context, id int64, ownerID string) ([]models.Problem, error)

	CreateWorkbookProblem(ctx context.Context, link *models.WorkbookProblem) ([]models.WorkbookProblem, error)
	GetWorkbookProblems(ctx context.Context, workbookID int64, problemIDs []int64) ([]models.WorkbookProblem, error)
	UpsertWorkbookProblems(ctx context.Context, links []models.WorkbookProblem) ([]models.WorkbookProblem, error)

	GetBookmark(ctx context.Context, uid string, problemID int64) (*models.SharedProblem, error)
	CreateBookmark(ctx context.Context, bookmark *models.SharedProblem) ([]models.SharedProblem, error)
	DeleteBookmark(ctx context.Context, uid string, problemID int64) ([]models.SharedProblem, error)
}

type HistoryStore interface {
	CreateHistory(ctx context.Context, history *models.ProblemHistory) ([]models.ProblemHistory, error)
	// GetHistoryByUser returns the attempts of userID, most recent first.
	GetHistoryByUser(ctx context.Context, userID string) ([]models.ProblemHistory, error)
	GetHistoryByTestCenter(ctx context.Context, testCenterID int64) ([]models.ProblemHistory, error)
	GetTestResult(ctx context.Context, id int64) (*models.TestResult, error)
}

// Store is implemented by both the Supabase REST backend and the direct Postgres backend
type Store interface {
	InviteStore
	ProblemStore
	HistoryStore
	Ping(ctx context.Context) error
}

var (
	_ Store = (*RESTRepository)(nil)
	_ Store = (*GORMRepository)(nil)
)
