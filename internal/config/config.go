package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB      DBConfig
	MinIO   MinIOConfig
	JWT     JWTConfig
	OAuth   OAuthConfig
	Presign PresignConfig
	Server  ServerConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret     string
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURI        string
}

type PresignConfig struct {
	UploadTTL   time.Duration
	DownloadTTL time.Duration
}

type ServerConfig struct {
	Port       string
	CORSOrigin string
}

func Load() *Config {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "drivehub"),
			Password: getEnv("DB_PASSWORD", "drivehub_secret"),
			Name:     getEnv("DB_NAME", "drivehub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "drivehub"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "drivehub_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "drivehub"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-me-in-production"),
			SessionTTL: getEnvAsDuration("JWT_SESSION_TTL", 15*time.Minute),
			RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("OAUTH_GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("OAUTH_GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:        getEnv("OAUTH_REDIRECT_URI", ""),
		},
		Presign: PresignConfig{
			UploadTTL:   getEnvAsDuration("PRESIGN_UPLOAD_TTL", 10*time.Minute),
			DownloadTTL: getEnvAsDuration("PRESIGN_DOWNLOAD_TTL", 5*time.Minute),
		},
		Server: ServerConfig{
			Port:       getEnv("SERVER_PORT", "8080"),
			CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
