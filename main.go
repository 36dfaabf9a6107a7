package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/examroom/examroom/backend/postgrest"
	"github.com/examroom/examroom/backend/repository"
	"github.com/examroom/examroom/backend/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	config := services.LoadConfig()

	store, err := openStore(context.Background(), config)
	if err != nil {
		slog.Error("Failed to open data store", "error", err)
		os.Exit(1)
	}

	server := services.NewServer(config, store)
	if err := server.InitializeServices(); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server.Start()
}

// openStore connects to Postgres directly when DATABASE_URL is set, otherwise to the
// Supabase REST API
func openStore(ctx context.Context, config *services.Config) (repository.Store, error) {
	if config.Database.URL != "" {
		return openDatabase(ctx, config.Database)
	}
	if config.Supabase.URL != "" {
		return openSupabase(config.Supabase)
	}
	return nil, fmt.Errorf("set DATABASE_URL or SUPABASE_URL")
}

func openDatabase(ctx context.Context, cfg services.DatabaseConfig) (*repository.GORMRepository, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	slog.Info("Connected to database")

	repo := repository.NewGORMRepository(db)
	if cfg.Migrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		slog.Info("Database migrated")
	}

	if cfg.Seed {
		if err := services.NewDatabaseSeeder(repo).SeedDatabase(ctx); err != nil {
			// Seeding is best effort
			slog.Error("Failed to seed database", "error", err)
		}
	}
	return repo, nil
}

func openSupabase(cfg services.SupabaseConfig) (*repository.RESTRepository, error) {
	key := cfg.ServiceKey
	if key == "" {
		key = cfg.AnonKey
	}
	client, err := postgrest.NewClient(postgrest.Config{
		URL:     cfg.URL,
		APIKey:  key,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	slog.Info("Using Supabase REST backend", "url", cfg.URL)
	return repository.NewRESTRepository(client), nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}
