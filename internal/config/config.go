package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the ViewTube backend service.
type Config struct {
	AppPort  int
	LogLevel string

	MongoURI      string
	MongoDatabase string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	CookieSecure       bool

	ObjectStore  ObjectStoreConfig
	AssetTimeout time.Duration
	FFProbePath  string
	UploadDir    string
}

// ObjectStoreConfig targets the S3-compatible bucket backing the asset store.
type ObjectStoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// Load reads configuration from environment variables, applying sensible
// defaults for local development. A .env file in the working directory is
// honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppPort:  getInt("VIEWTUBE_PORT", 8080),
		LogLevel: getString("VIEWTUBE_LOG_LEVEL", "info"),

		MongoURI:      getString("VIEWTUBE_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getString("VIEWTUBE_MONGO_DB", "viewtube"),

		AccessTokenSecret:  getString("VIEWTUBE_ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getString("VIEWTUBE_REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     getDuration("VIEWTUBE_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("VIEWTUBE_REFRESH_TOKEN_TTL", 240*time.Hour),
		CookieSecure:       getBool("VIEWTUBE_COOKIE_SECURE", false),

		ObjectStore: ObjectStoreConfig{
			Bucket:        getString("VIEWTUBE_S3_BUCKET", ""),
			Region:        getString("VIEWTUBE_S3_REGION", "us-east-1"),
			Endpoint:      getString("VIEWTUBE_S3_ENDPOINT", ""),
			PublicBaseURL: getString("VIEWTUBE_S3_PUBLIC_BASE_URL", ""),
		},
		AssetTimeout: getDuration("VIEWTUBE_ASSET_TIMEOUT", 30*time.Second),
		FFProbePath:  getString("VIEWTUBE_FFPROBE_PATH", "ffprobe"),
		UploadDir:    getString("VIEWTUBE_UPLOAD_DIR", os.TempDir()),
	}

	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return Config{}, errors.New("config: VIEWTUBE_ACCESS_TOKEN_SECRET and VIEWTUBE_REFRESH_TOKEN_SECRET must be set")
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
