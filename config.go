package propsage

import (
	"time"
)

// Config consolidates service settings. cmd/server populates it from
// environment variables.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Gemini   GeminiConfig   `json:"gemini"`
	Upload   UploadConfig   `json:"upload"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// DatabaseConfig contains postgres connection settings.
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
	Tables          TableNames    `json:"tableNames"`
}

// TableNames allows deploying several environments into one database.
type TableNames struct {
	Uploads       string `json:"uploads"`
	Results       string `json:"results"`
	Conversations string `json:"conversations"`
	QueryLogs     string `json:"queryLogs"`
}

// GeminiConfig contains the text-completion backend settings. The client
// is constructed once at startup and injected as a Completer, never per
// request.
type GeminiConfig struct {
	APIKey      string        `json:"-"`
	BaseURL     string        `json:"baseUrl"`
	Model       string        `json:"model"`
	Timeout     time.Duration `json:"timeout"`
	MaxAttempts int           `json:"maxAttempts"`
	RetryDelay  time.Duration `json:"retryDelay"`
}

// UploadConfig contains spreadsheet ingestion limits and the optional S3
// archive target for raw upload bytes.
type UploadConfig struct {
	MaxRows       int    `json:"maxRows"`
	MaxBytes      int64  `json:"maxBytes"`
	ArchiveBucket string `json:"archiveBucket,omitempty"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "propsage",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			Tables: TableNames{
				Uploads:       "data_uploads",
				Results:       "filtered_results",
				Conversations: "conversation_history",
				QueryLogs:     "user_queries",
			},
		},
		Gemini: GeminiConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-2.5-flash",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  500 * time.Millisecond,
		},
		Upload: UploadConfig{
			MaxRows:  50000,
			MaxBytes: 16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
