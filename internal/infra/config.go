package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	MaxFileSize         int64
	AllowedImageFormats []string
	DefaultImageSize    string
	DefaultImageQuality string

	RateLimitPerMin int

	GeneratedImagesDir string
	GeoIPDBPath        string
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITimeout: time.Second * time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 60)),

		MaxFileSize:         int64(getEnvInt("MAX_FILE_SIZE", 50_000_000)),
		AllowedImageFormats: splitCSV(getEnv("ALLOWED_IMAGE_FORMATS", "png,jpg,jpeg,webp")),
		DefaultImageSize:    getEnv("DEFAULT_IMAGE_SIZE", "1024x1024"),
		DefaultImageQuality: getEnv("DEFAULT_IMAGE_QUALITY", "standard"),

		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		GeneratedImagesDir: getEnv("GENERATED_IMAGES_DIR", "generated-images"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.RateLimitPerMin <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
