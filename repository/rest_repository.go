package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/postgrest"
)

const (
	tableProblem         = "problem"
	tableCategory        = "category"
	tableWorkbookProblem = "workbook_problem"
	tableSharedProblem   = "shared_problem"
	tableProblemHistory  = "problem_history"
	tableTestResult      = "test_result"
	tableTestCenter      = "test_center"
	tableInvite          = "invite"

	problemWithRelations = "*, category(*), history:problem_history(*), likes:problem_like(*)"
)

// RESTRepository implements Store over the Supabase REST API. Calls run as the user whose
// access token is attached to ctx (see postgrest.WithAccessToken).
type RESTRepository struct {
	client *postgrest.Client
}

func NewRESTRepository(client *postgrest.Client) *RESTRepository {
	return &RESTRepository{client: client}
}

func (r *RESTRepository) Ping(ctx context.Context) error {
	var rows []models.Category
	if err := r.client.From(tableCategory).Select("id").Limit(1).Execute(ctx, &rows); err != nil {
		return fmt.Errorf("supabase ping: %w", err)
	}
	return nil
}

// Invite operations
func (r *RESTRepository) GetInvitesByTarget(ctx context.Context, targetUID string) ([]models.Invite, error) {
	var invites []models.Invite
	err := r.client.From(tableInvite).
		Select("*, test_center(*)").
		Eq("target_uid", targetUID).
		Execute(ctx, &invites)
	if err != nil {
		slog.Error("Failed to get invites", "error", err, "target_uid", targetUID)
		return nil, mapRESTError(err)
	}
	return invites, nil
}

func (r *RESTRepository) CreateInvite(ctx context.Context, invite *models.Invite) ([]models.Invite, error) {
	var rows []models.Invite
	if err := r.client.From(tableInvite).Insert([]*models.Invite{invite}).Select("*").Execute(ctx, &rows); err != nil {
		slog.Error("Failed to create invite", "error", err, "target_uid", invite.TargetUID, "test_center_id", invite.TestCenterID)
		return nil, mapRESTError(err)
	}
	slog.Info("Invite created", "target_uid", invite.TargetUID, "test_center_id", invite.TestCenterID)
	return rows, nil
}

// AcceptInvite has no transaction to lean on, so a failed membership upsert is compensated
// by resetting the invite's participate flag.
func (r *RESTRepository) AcceptInvite(ctx context.Context, id int64, userID string, now time.Time) (*InviteAcceptance, error) {
	var invite models.Invite
	err := r.client.From(tableInvite).
		Update(map[string]interface{}{"participate": true}).
		Eq("id", id).
		Eq("target_uid", userID).
		Select("*").
		Single().
		Execute(ctx, &invite)
	if err != nil {
		slog.Error("Failed to mark invite accepted", "error", err, "invite_id", id, "user_id", userID)
		return nil, mapRESTError(err)
	}

	membership := models.MembershipFromInvite(invite, userID, now)
	var rows []models.TestCenter
	err = r.client.From(tableTestCenter).
		Upsert(membership, "uid", "test_center_id").
		Select("*").
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to upsert test center membership", "error", err, "invite_id", id, "user_id", userID)
		if cerr := r.client.From(tableInvite).
			Update(map[string]interface{}{"participate": false}).
			Eq("id", id).
			Eq("target_uid", userID).
			Execute(ctx, nil); cerr != nil {
			slog.Error("Failed to revert invite after membership failure", "error", cerr, "invite_id", id)
			return nil, fmt.Errorf("upsert membership: %w (revert invite: %v)", mapRESTError(err), cerr)
		}
		return nil, fmt.Errorf("upsert membership: %w", mapRESTError(err))
	}
	if len(rows) > 0 {
		membership = rows[0]
	}

	slog.Info("Invite accepted", "invite_id", id, "user_id", userID, "test_center_id", invite.TestCenterID)
	return &InviteAcceptance{Invite: invite, Membership: membership}, nil
}

func (r *RESTRepository) DeleteInvite(ctx context.Context, id int64, userID string) ([]models.Invite, error) {
	var rows []models.Invite
	err := r.client.From(tableInvite).
		Delete().
		Eq("id", id).
		Eq("target_uid", userID).
		Select("*").
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to delete invite", "error", err, "invite_id", id, "user_id", userID)
		return nil, mapRESTError(err)
	}
	slog.Info("Invite deleted", "invite_id", id, "rows", len(rows))
	return rows, nil
}

// Problem operations
func (r *RESTRepository) GetSharedProblems(ctx context.Context, userID string) ([]models.Problem, error) {
	var problems []models.Problem
	err := r.client.From(tableProblem).
		Select(problemWithRelations).
		Eq("shared", true).
		Filter("history.uid", "eq", userID).
		Execute(ctx, &problems)
	if err != nil {
		slog.Error("Failed to get shared problems", "error", err, "user_id", userID)
		return nil, mapRESTError(err)
	}
	return problems, nil
}

func (r *RESTRepository) GetProblemsByOwner(ctx context.Context, ownerID string, sharedOnly bool) ([]models.Problem, error) {
	query := r.client.From(tableProblem).Select("*").Eq("uid", ownerID)
	if sharedOnly {
		query = query.Eq("shared", true)
	}

	var problems []models.Problem
	if err := query.Execute(ctx, &problems); err != nil {
		slog.Error("Failed to get problems by owner", "error", err, "owner_id", ownerID, "shared_only", sharedOnly)
		return nil, mapRESTError(err)
	}
	return problems, nil
}

func (r *RESTRepository) SearchProblems(ctx context.Context, q ProblemQuery) ([]models.Problem, error) {
	query := r.client.From(tableProblem).Select(problemWithRelations)
	if q.Keyword != "" {
		pattern := postgrest.QuoteValue("%" + q.Keyword + "%")
		query = query.Or(fmt.Sprintf("title.ilike.%s,question.ilike.%s", pattern, pattern))
	}
	if q.CreatedFrom != nil {
		query = query.Gte("created_at", *q.CreatedFrom)
	}
	if q.CreatedBefore != nil {
		query = query.Lt("created_at", *q.CreatedBefore)
	}

	var problems []models.Problem
	if err := query.Execute(ctx, &problems); err != nil {
		slog.Error("Failed to search problems", "error", err, "keyword", q.Keyword)
		return nil, mapRESTError(err)
	}
	return problems, nil
}

func (r *RESTRepository) GetProblem(ctx context.Context, id int64) (*models.Problem, error) {
	var problem models.Problem
	err := r.client.From(tableProblem).
		Select("*, category(id, name)").
		Eq("id", id).
		Single().
		Execute(ctx, &problem)
	if err != nil {
		if !postgrest.IsNotFound(err) {
			slog.Error("Failed to get problem", "error", err, "problem_id", id)
		}
		return nil, mapRESTError(err)
	}
	return &problem, nil
}

func (r *RESTRepository) CreateProblem(ctx context.Context, problem *models.Problem) ([]models.Problem, error) {
	var rows []models.Problem
	if err := r.client.From(tableProblem).Insert([]*models.Problem{problem}).Select("*").Execute(ctx, &rows); err != nil {
		slog.Error("Failed to create problem", "error", err, "uid", problem.UID, "title", problem.Title)
		return nil, mapRESTError(err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create problem %q: no row returned", problem.Title)
	}
	slog.Info("Problem created", "problem_id", rows[0].ID, "uid", problem.UID)
	return rows, nil
}

func (r *RESTRepository) UpdateProblem(ctx context.Context, id int64, ownerID string, fields map[string]interface{}) ([]models.Problem, error) {
	var rows []models.Problem
	err := r.client.From(tableProblem).Update(fields).Eq("id", id).Eq("uid", ownerID).Select("*").Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to update problem", "error", err, "problem_id", id, "uid", ownerID)
		return nil, mapRESTError(err)
	}
	slog.Info("Problem updated", "problem_id", id, "rows", len(rows))
	return rows, nil
}

func (r *RESTRepository) DeleteProblem(ctx context.Context, id int64, ownerID string) ([]models.Problem, error) {
	var rows []models.Problem
	if err := r.client.From(tableProblem).Delete().Eq("id", id).Eq("uid", ownerID).Select("*").Execute(ctx, &rows); err != nil {
		slog.Error("Failed to delete problem", "error", err, "problem_id", id, "uid", ownerID)
		return nil, mapRESTError(err)
	}
	slog.Info("Problem deleted", "problem_id", id, "rows", len(rows))
	return rows, nil
}

// Workbook operations
func (r *RESTRepository) CreateWorkbookProblem(ctx context.Context, link *models.WorkbookProblem) ([]models.WorkbookProblem, error) {
	var rows []models.WorkbookProblem
	if err := r.client.From(tableWorkbookProblem).Insert([]*models.WorkbookProblem{link}).Select("*").Execute(ctx, &rows); err != nil {
		slog.Error("Failed to link problem to workbook", "error", err, "workbook_id", link.WorkbookID, "problem_id", link.ProblemID)
		return nil, mapRESTError(err)
	}
	return rows, nil
}

func (r *RESTRepository) GetWorkbookProblems(ctx context.Context, workbookID int64, problemIDs []int64) ([]models.WorkbookProblem, error) {
	ids := make([]interface{}, 0, len(problemIDs))
	for _, id := range problemIDs {
		ids = append(ids, id)
	}

	var rows []models.WorkbookProblem
	err := r.client.From(tableWorkbookProblem).
		Select("*").
		Eq("workbook_id", workbookID).
		In("problem_id", ids...).
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to get workbook problems", "error", err, "workbook_id", workbookID)
		return nil, mapRESTError(err)
	}
	return rows, nil
}

func (r *RESTRepository) UpsertWorkbookProblems(ctx context.Context, links []models.WorkbookProblem) ([]models.WorkbookProblem, error) {
	var rows []models.WorkbookProblem
	err := r.client.From(tableWorkbookProblem).
		Upsert(links, "workbook_id", "problem_id").
		Select("*").
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to upsert workbook problems", "error", err, "count", len(links))
		return nil, mapRESTError(err)
	}
	return rows, nil
}

// Bookmark operations
func (r *RESTRepository) GetBookmark(ctx context.Context, uid string, problemID int64) (*models.SharedProblem, error) {
	var bookmark models.SharedProblem
	err := r.client.From(tableSharedProblem).
		Select("*").
		Eq("uid", uid).
		Eq("problem_id", problemID).
		Single().
		Execute(ctx, &bookmark)
	if err != nil {
		return nil, mapRESTError(err)
	}
	return &bookmark, nil
}

func (r *RESTRepository) CreateBookmark(ctx context.Context, bookmark *models.SharedProblem) ([]models.SharedProblem, error) {
	var rows []models.SharedProblem
	if err := r.client.From(tableSharedProblem).Insert([]*models.SharedProblem{bookmark}).Select("*").Execute(ctx, &rows); err != nil {
		slog.Error("Failed to create bookmark", "error", err, "uid", bookmark.UID, "problem_id", bookmark.ProblemID)
		return nil, mapRESTError(err)
	}
	slog.Info("Bookmark created", "uid", bookmark.UID, "problem_id", bookmark.ProblemID)
	return rows, nil
}

func (r *RESTRepository) DeleteBookmark(ctx context.Context, uid string, problemID int64) ([]models.SharedProblem, error) {
	var rows []models.SharedProblem
	err := r.client.From(tableSharedProblem).
		Delete().
		Eq("uid", uid).
		Eq("problem_id", problemID).
		Select("*").
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to delete bookmark", "error", err, "uid", uid, "problem_id", problemID)
		return nil, mapRESTError(err)
	}
	slog.Info("Bookmark deleted", "uid", uid, "problem_id", problemID, "rows", len(rows))
	return rows, nil
}

// History operations
func (r *RESTRepository) CreateHistory(ctx context.Context, history *models.ProblemHistory) ([]models.ProblemHistory, error) {
	var rows []models.ProblemHistory
	if err := r.client.From(tableProblemHistory).Insert([]*models.ProblemHistory{history}).Select("*").Execute(ctx, &rows); err != nil {
		slog.Error("Failed to create problem history", "error", err, "uid", history.UID, "problem_id", history.ProblemID)
		return nil, mapRESTError(err)
	}
	return rows, nil
}

func (r *RESTRepository) GetHistoryByUser(ctx context.Context, userID string) ([]models.ProblemHistory, error) {
	var rows []models.ProblemHistory
	err := r.client.From(tableProblemHistory).
		Select("*").
		Eq("uid", userID).
		Order("created_at", false).
		Order("id", false).
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to get problem history by user", "error", err, "user_id", userID)
		return nil, mapRESTError(err)
	}
	return rows, nil
}

func (r *RESTRepository) GetHistoryByTestCenter(ctx context.Context, testCenterID int64) ([]models.ProblemHistory, error) {
	var rows []models.ProblemHistory
	err := r.client.From(tableProblemHistory).
		Select("problem_id, my_option, status").
		Eq("test_center_id", testCenterID).
		Order("problem_id", true).
		Execute(ctx, &rows)
	if err != nil {
		slog.Error("Failed to get problem history by test center", "error", err, "test_center_id", testCenterID)
		return nil, mapRESTError(err)
	}
	return rows, nil
}

func (r *RESTRepository) GetTestResult(ctx context.Context, id int64) (*models.TestResult, error) {
	var result models.TestResult
	err := r.client.From(tableTestResult).
		Select("test_center_id, created_at").
		Eq("id", id).
		Single().
		Execute(ctx, &result)
	if err != nil {
		if !postgrest.IsNotFound(err) {
			slog.Error("Failed to get test result", "error", err, "test_result_id", id)
		}
		return nil, mapRESTError(err)
	}
	result.ID = id
	return &result, nil
}

func mapRESTError(err error) error {
	switch {
	case postgrest.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case postgrest.IsConflict(err):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
