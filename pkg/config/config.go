package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string

	BackendURL     string
	ProjectName    string
	GatewayTimeout time.Duration

	StorageBucket        string
	StoragePublicBaseURL string
	CredentialsPath      string
	MaxUploadBytes       int64

	SessionSecret string
	AdminName     string
	AdminEmail    string

	LogFile string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		ProjectName:    getEnv("PROJECT_NAME", "houseshower"),
		GatewayTimeout: time.Duration(getEnvAsInt64("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,

		StorageBucket:        getEnv("STORAGE_BUCKET", ""),
		StoragePublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		CredentialsPath:      getEnv("GOOGLE_APPLICATION_CREDENTIALS_PATH", ""),
		MaxUploadBytes:       getEnvAsInt64("MAX_UPLOAD_BYTES", 5*1024*1024), // 5MB

		SessionSecret: getEnv("SESSION_SECRET", "change-me-session-secret"),
		AdminName:     getEnv("ADMIN_NAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@admin.com"),

		LogFile: getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports the first missing or malformed required value.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
