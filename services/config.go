package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Supabase    SupabaseConfig
	WebSocket   WebSocketConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Port   string
	WebDir string // built web app; pages are not served when empty
}

// DatabaseConfig selects the direct Postgres backend when URL is set
type DatabaseConfig struct {
	URL          string
	Migrate      bool
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
	Timeout    time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// IsProduction reports whether cookies must be marked Secure
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.web_dir", "")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.migrate", "true")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("supabase.url", "")
	viper.SetDefault("supabase.anon_key", "")
	viper.SetDefault("supabase.service_key", "")
	viper.SetDefault("supabase.jwt_secret", "")
	viper.SetDefault("supabase.timeout", "30s")
	viper.SetDefault("rate_limit.rps", "20")
	viper.SetDefault("rate_limit.burst", "40")

	// Map environment variables to config keys
	viper.BindEnv("environment", "ENVIRONMENT")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.web_dir", "WEB_DIR")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.migrate", "DATABASE_MIGRATE")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("supabase.url", "SUPABASE_URL")
	viper.BindEnv("supabase.anon_key", "SUPABASE_ANON_KEY")
	viper.BindEnv("supabase.service_key", "SUPABASE_SERVICE_KEY")
	viper.BindEnv("supabase.jwt_secret", "SUPABASE_JWT_SECRET")
	viper.BindEnv("supabase.timeout", "SUPABASE_TIMEOUT")
	viper.BindEnv("rate_limit.rps", "RATE_LIMIT_RPS")
	viper.BindEnv("rate_limit.burst", "RATE_LIMIT_BURST")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Environment: viper.GetString("environment"),
		Server: ServerConfig{
			Port:   viper.GetString("server.port"),
			WebDir: viper.GetString("server.web_dir"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Migrate:      viper.GetBool("database.migrate"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Supabase: SupabaseConfig{
			URL:        viper.GetString("supabase.url"),
			AnonKey:    viper.GetString("supabase.anon_key"),
			ServiceKey: viper.GetString("supabase.service_key"),
			JWTSecret:  viper.GetString("supabase.jwt_secret"),
			Timeout:    viper.GetDuration("supabase.timeout"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: viper.GetFloat64("rate_limit.rps"),
			Burst:             viper.GetInt("rate_limit.burst"),
		},
	}
}
