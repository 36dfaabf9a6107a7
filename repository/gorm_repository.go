package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/examroom/examroom/backend/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(models.All()...)
}

func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Invite operations
func (r *GORMRepository) GetInvitesByTarget(ctx context.Context, targetUID string) ([]models.Invite, error) {
	var invites []models.Invite
	err := r.db.WithContext(ctx).
		Where("target_uid = ?", targetUID).
		Preload("TestCenter").
		Find(&invites).Error
	if err != nil {
		slog.Error("Failed to get invites", "error", err, "target_uid", targetUID)
		return nil, mapGORMError(err)
	}
	return invites, nil
}

func (r *GORMRepository) CreateInvite(ctx context.Context, invite *models.Invite) ([]models.Invite, error) {
	if err := r.db.WithContext(ctx).Create(invite).Error; err != nil {
		slog.Error("Failed to create invite", "error", err, "target_uid", invite.TargetUID, "test_center_id", invite.TestCenterID)
		return nil, mapGORMError(err)
	}
	slog.Info("Invite created", "invite_id", invite.ID, "target_uid", invite.TargetUID, "test_center_id", invite.TestCenterID)
	return []models.Invite{*invite}, nil
}

// AcceptInvite runs the invite update and the membership upsert in one transaction.
func (r *GORMRepository) AcceptInvite(ctx context.Context, id int64, userID string, now time.Time) (*InviteAcceptance, error) {
	var result InviteAcceptance
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var updated []models.Invite
		res := tx.Model(&updated).
			Clauses(clause.Returning{}).
			Where("id = ? AND target_uid = ?", id, userID).
			Update("participate", true)
		if res.Error != nil {
			return res.Error
		}
		if len(updated) == 0 {
			return ErrNotFound
		}
		result.Invite = updated[0]

		result.Membership = models.MembershipFromInvite(result.Invite, userID, now)
		return tx.Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "uid"}, {Name: "test_center_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"target_uid", "participate", "created_at"}),
			},
			clause.Returning{},
		).Create(&result.Membership).Error
	})
	if err != nil {
		slog.Error("Failed to accept invite", "error", err, "invite_id", id, "user_id", userID)
		return nil, mapGORMError(err)
	}

	slog.Info("Invite accepted", "invite_id", id, "user_id", userID, "test_center_id", result.Invite.TestCenterID)
	return &result, nil
}

func (r *GORMRepository) DeleteInvite(ctx context.Context, id int64, userID string) ([]models.Invite, error) {
	var rows []models.Invite
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND target_uid = ?", id, userID).
		Delete(&rows).Error
	if err != nil {
		slog.Error("Failed to delete invite", "error", err, "invite_id", id, "user_id", userID)
		return nil, mapGORMError(err)
	}
	slog.Info("Invite deleted", "invite_id", id, "rows", len(rows))
	return rows, nil
}

// Problem operations
func (r *GORMRepository) GetSharedProblems(ctx context.Context, userID string) ([]models.Problem, error) {
	var problems []models.Problem
	err := r.db.WithContext(ctx).
		Where("shared = ?", true).
		Preload("Category").
		Preload("History", "uid = ?", userID).
		Preload("Likes").
		Find(&problems).Error
	if err != nil {
		slog.Error("Failed to get shared problems", "error", err, "user_id", userID)
		return nil, mapGORMError(err)
	}
	return problems, nil
}

func (r *GORMRepository) GetProblemsByOwner(ctx context.Context, ownerID string, sharedOnly bool) ([]models.Problem, error) {
	var problems []models.Problem
	query := r.db.WithContext(ctx).Where("uid = ?", ownerID)
	if sharedOnly {
		query = query.Where("shared = ?", true)
	}

	if err := query.Find(&problems).Error; err != nil {
		slog.Error("Failed to get problems by owner", "error", err, "owner_id", ownerID, "shared_only", sharedOnly)
		return nil, mapGORMError(err)
	}
	return problems, nil
}

func (r *GORMRepository) SearchProblems(ctx context.Context, q ProblemQuery) ([]models.Problem, error) {
	query := r.db.WithContext(ctx).
		Preload("Category").
		Preload("History").
		Preload("Likes")

	if q.Keyword != "" {
		pattern := "%" + escapeLike(q.Keyword) + "%"
		query = query.Where("(title ILIKE ? OR question ILIKE ?)", pattern, pattern)
	}
	if q.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *q.CreatedFrom)
	}
	if q.CreatedBefore != nil {
		query = query.Where("created_at < ?", *q.CreatedBefore)
	}

	var problems []models.Problem
	if err := query.Find(&problems).Error; err != nil {
		slog.Error("Failed to search problems", "error", err, "keyword", q.Keyword)
		return nil, mapGORMError(err)
	}
	return problems, nil
}

func (r *GORMRepository) GetProblem(ctx context.Context, id int64) (*models.Problem, error) {
	var problem models.Problem
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Preload("Category").
		First(&problem).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("Failed to get problem", "error", err, "problem_id", id)
		}
		return nil, mapGORMError(err)
	}
	return &problem, nil
}

func (r *GORMRepository) CreateProblem(ctx context.Context, problem *models.Problem) ([]models.Problem, error) {
	if err := r.db.WithContext(ctx).Create(problem).Error; err != nil {
		slog.Error("Failed to create problem", "error", err, "uid", problem.UID, "title", problem.Title)
		return nil, mapGORMError(err)
	}
	slog.Info("Problem created", "problem_id", problem.ID, "uid", problem.UID)
	return []models.Problem{*problem}, nil
}

func (r *GORMRepository) UpdateProblem(ctx context.Context, id int64, ownerID string, fields map[string]interface{}) ([]models.Problem, error) {
	var rows []models.Problem
	err := r.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("id = ? AND uid = ?", id, ownerID).
		Updates(fields).Error
	if err != nil {
		slog.Error("Failed to update problem", "error", err, "problem_id", id, "uid", ownerID)
		return nil, mapGORMError(err)
	}
	slog.Info("Problem updated", "problem_id", id, "rows", len(rows))
	return rows, nil
}

func (r *GORMRepository) DeleteProblem(ctx context.Context, id int64, ownerID string) ([]models.Problem, error) {
	var rows []models.Problem
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND uid = ?", id, ownerID).
		Delete(&rows).Error
	if err != nil {
		slog.Error("Failed to delete problem", "error", err, "problem_id", id, "uid", ownerID)
		return nil, mapGORMError(err)
	}
	slog.Info("Problem deleted", "problem_id", id, "rows", len(rows))
	return rows, nil
}

// Workbook operations
func (r *GORMRepository) CreateWorkbookProblem(ctx context.Context, link *models.WorkbookProblem) ([]models.WorkbookProblem, error) {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		slog.Error("Failed to link problem to workbook", "error", err, "workbook_id", link.WorkbookID, "problem_id", link.ProblemID)
		return nil, mapGORMError(err)
	}
	return []models.WorkbookProblem{*link}, nil
}

func (r *GORMRepository) GetWorkbookProblems(ctx context.Context, workbookID int64, problemIDs []int64) ([]models.WorkbookProblem, error) {
	var rows []models.WorkbookProblem
	err := r.db.WithContext(ctx).
		Where("workbook_id = ? AND problem_id IN ?", workbookID, problemIDs).
		Find(&rows).Error
	if err != nil {
		slog.Error("Failed to get workbook problems", "error", err, "workbook_id", workbookID)
		return nil, mapGORMError(err)
	}
	return rows, nil
}

func (r *GORMRepository) UpsertWorkbookProblems(ctx context.Context, links []models.WorkbookProblem) ([]models.WorkbookProblem, error) {
	if len(links) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "workbook_id"}, {Name: "problem_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"problem_id"}),
			},
			clause.Returning{},
		).
		Create(&links).Error
	if err != nil {
		slog.Error("Failed to upsert workbook problems", "error", err, "count", len(links))
		return nil, mapGORMError(err)
	}
	return links, nil
}

// Bookmark operations
func (r *GORMRepository) GetBookmark(ctx context.Context, uid string, problemID int64) (*models.SharedProblem, error) {
	var bookmark models.SharedProblem
	err := r.db.WithContext(ctx).
		Where("uid = ? AND problem_id = ?", uid, problemID).
		First(&bookmark).Error
	if err != nil {
		return nil, mapGORMError(err)
	}
	return &bookmark, nil
}

func (r *GORMRepository) CreateBookmark(ctx context.Context, bookmark *models.SharedProblem) ([]models.SharedProblem, error) {
	if err := r.db.WithContext(ctx).Create(bookmark).Error; err != nil {
		slog.Error("Failed to create bookmark", "error", err, "uid", bookmark.UID, "problem_id", bookmark.ProblemID)
		return nil, mapGORMError(err)
	}
	slog.Info("Bookmark created", "uid", bookmark.UID, "problem_id", bookmark.ProblemID)
	return []models.SharedProblem{*bookmark}, nil
}

func (r *GORMRepository) DeleteBookmark(ctx context.Context, uid string, problemID int64) ([]models.SharedProblem, error) {
	var rows []models.SharedProblem
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("uid = ? AND problem_id = ?", uid, problemID).
		Delete(&rows).Error
	if err != nil {
		slog.Error("Failed to delete bookmark", "error", err, "uid", uid, "problem_id", problemID)
		return nil, mapGORMError(err)
	}
	slog.Info("Bookmark deleted", "uid", uid, "problem_id", problemID, "rows", len(rows))
	return rows, nil
}

// Category operations
func (r *GORMRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get category", "error", err, "name", name)
		return nil, err
	}
	return &category, nil
}

func (r *GORMRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(category).Error
	if err != nil {
		slog.Error("Failed to create category", "error", err, "name", category.Name)
		return mapGORMError(err)
	}
	return nil
}

// mapGORMError translates driver errors into the package sentinels
func mapGORMError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
