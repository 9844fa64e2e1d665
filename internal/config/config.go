package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	// Location is the app-local zone used for day and week boundaries.
	Location *time.Location

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	TaskQueueKey    string
	TaskWorkers     int
	TaskMaxAttempts int

	ChallengeSweepSchedule string
	RollingGCSchedule      string
	SearchReindexSchedule  string

	RateLimitChallenge time.Duration
	RateLimitInvite    time.Duration
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		MeiliSearchHost: getEnv("MEILISEARCH_HOST", "http://localhost:7700"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "seraph"),

		TaskQueueKey: getEnv("TASK_QUEUE_KEY", "seraph:tasks"),

		ChallengeSweepSchedule: getEnv("CHALLENGE_SWEEP_SCHEDULE", "*/5 * * * *"),
		RollingGCSchedule:      getEnv("ROLLING_GC_SCHEDULE", "15 3 * * *"),
		SearchReindexSchedule:  getEnv("SEARCH_REINDEX_SCHEDULE", "0 * * * *"),
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "change-me"
	}

	var err error
	cfg.Location, err = time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	cfg.TaskWorkers, err = parseInt(getEnv("TASK_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid TASK_WORKERS: %w", err)
	}
	cfg.TaskMaxAttempts, err = parseInt(getEnv("TASK_MAX_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid TASK_MAX_ATTEMPTS: %w", err)
	}

	// Parsing durations
	cfg.RateLimitChallenge, err = parseDuration(getEnv("RATE_LIMIT_CHALLENGE", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_CHALLENGE: %w", err)
	}
	cfg.RateLimitInvite, err = parseDuration(getEnv("RATE_LIMIT_INVITE", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_INVITE: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
