package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/examroom/examroom/backend/models"
)

// CategoryStore is the part of the Postgres repository the seeder writes through
type CategoryStore interface {
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
}

// DefaultCategories are created on first start of an empty database
var DefaultCategories = []string{
	"Korean",
	"English",
	"Math",
	"Science",
	"Social Studies",
	"History",
	"Computer Science",
	"Etc",
}

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo CategoryStore
}

func NewDatabaseSeeder(repo CategoryStore) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase creates the default categories. Running it again is a no-op.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	created := 0
	for _, name := range DefaultCategories {
		ok, err := s.seedCategory(ctx, name)
		if err != nil {
			return err
		}
		if ok {
			created++
		}
	}

	if created == 0 {
		slog.Info("Database seeding already completed, skipping")
		return nil
	}
	slog.Info("Database seeding completed successfully", "categories_created", created)
	return nil
}

func (s *DatabaseSeeder) seedCategory(ctx context.Context, name string) (bool, error) {
	existing, err := s.repo.GetCategoryByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("error checking category %s: %w", name, err)
	}
	if existing != nil {
		return false, nil
	}

	if err := s.repo.CreateCategory(ctx, &models.Category{Name: name}); err != nil {
		return false, fmt.Errorf("failed to create category %s: %w", name, err)
	}
	slog.Info("Created category", "name", name)
	return true, nil
}
