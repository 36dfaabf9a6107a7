package services

import (
	"context"
	"errors"
	"testing"

	"github.com/examroom/examroom/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCategories struct {
	byName map[string]models.Category
	err    error
}

func (m *memoryCategories) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byName[name]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memoryCategories) CreateCategory(ctx context.Context, category *models.Category) error {
	category.ID = int64(len(m.byName) + 1)
	m.byName[category.Name] = *category
	return nil
}

func TestSeedDatabaseIsIdempotent(t *testing.T) {
	repo := &memoryCategories{byName: map[string]models.Category{"Math": {ID: 99, Name: "Math"}}}
	seeder := NewDatabaseSeeder(repo)

	require.NoError(t, seeder.SeedDatabase(context.Background()))
	assert.Len(t, repo.byName, len(DefaultCategories))
	assert.Equal(t, int64(99), repo.byName["Math"].ID)

	require.NoError(t, seeder.SeedDatabase(context.Background()))
	assert.Len(t, repo.byName, len(DefaultCategories))
}

func TestSeedDatabaseFailure(t *testing.T) {
	repo := &memoryCategories{byName: map[string]models.Category{}, err: errors.New("no database")}
	err := NewDatabaseSeeder(repo).SeedDatabase(context.Background())
	assert.ErrorContains(t, err, "no database")
}
