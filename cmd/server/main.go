package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/propsage/propsage"
	"github.com/propsage/propsage/internal"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg := configFromEnv()

	pool, err := createDatabasePoolFromConfig(cfg.Database)
	if err != nil {
		sugar.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := internal.EnsureSchema(ctx, pool, cfg.Database.Tables); err != nil {
		sugar.Fatalf("failed to ensure schema: %v", err)
	}

	uploads := internal.NewUploadRepository(pool, cfg.Database.Tables.Uploads)
	results := internal.NewResultRepository(pool, cfg.Database.Tables.Results)
	convs := internal.NewConversationRepository(pool, cfg.Database.Tables.Conversations)
	queryLogs := internal.NewQueryLogRepository(pool, cfg.Database.Tables.QueryLogs)

	analyst := propsage.NewAnalyst(internal.NewGeminiClient(cfg.Gemini))

	var archiver Archiver
	if cfg.Upload.ArchiveBucket != "" {
		s3Archiver, err := internal.NewS3Archiver(ctx, cfg.Upload.ArchiveBucket)
		if err != nil {
			sugar.Warnf("archive disabled, aws config failed: %v", err)
		} else {
			archiver = s3Archiver
		}
	}

	server := NewServer(cfg, uploads, results, convs, queryLogs, analyst, archiver)
	server.RegisterRoutes()

	if err := server.Start(cfg.Server.Port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// configFromEnv layers environment variables over the defaults.
func configFromEnv() *propsage.Config {
	cfg := propsage.DefaultConfig()

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
	cfg.Database.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.Timeout = time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", int(cfg.Database.Timeout.Seconds()))) * time.Second
	cfg.Database.Tables.Uploads = getEnv("UPLOADS_TABLE", cfg.Database.Tables.Uploads)
	cfg.Database.Tables.Results = getEnv("RESULTS_TABLE", cfg.Database.Tables.Results)
	cfg.Database.Tables.Conversations = getEnv("CONVERSATIONS_TABLE", cfg.Database.Tables.Conversations)
	cfg.Database.Tables.QueryLogs = getEnv("QUERY_LOGS_TABLE", cfg.Database.Tables.QueryLogs)

	cfg.Gemini.APIKey = getEnv("GEMINI_API_KEY", "")
	cfg.Gemini.BaseURL = getEnv("GEMINI_BASE_URL", cfg.Gemini.BaseURL)
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", cfg.Gemini.Model)

	cfg.Upload.MaxRows = getEnvInt("UPLOAD_MAX_ROWS", cfg.Upload.MaxRows)
	cfg.Upload.MaxBytes = int64(getEnvInt("UPLOAD_MAX_BYTES", int(cfg.Upload.MaxBytes)))
	cfg.Upload.ArchiveBucket = getEnv("ARCHIVE_BUCKET", cfg.Upload.ArchiveBucket)

	return cfg
}

// createDatabasePoolFromConfig creates a PostgreSQL connection pool from config
func createDatabasePoolFromConfig(config propsage.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.MaxConnections)
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = config.Timeout

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
