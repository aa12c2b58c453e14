package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process settings read from the environment.
type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	DatabaseDSN        string
	RedisAddr          string
	JWTSecret          string
	JWTAudience        string
	CascadePath        string
	DetectorAddr       string
	DetectorPoolSize   int
	LogLevel           string
	CORSAllowedOrigins []string
	PortraitCacheTTL   time.Duration
}

// Load reads the environment, after loading a .env file from the working
// directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	poolSize, err := strconv.Atoi(getEnv("DETECTOR_POOL_SIZE", "4"))
	if err != nil || poolSize <= 0 {
		return nil, errors.New("DETECTOR_POOL_SIZE must be a positive integer")
	}

	cacheTTL, err := time.ParseDuration(getEnv("PORTRAIT_CACHE_TTL", "10m"))
	if err != nil {
		return nil, errors.New("PORTRAIT_CACHE_TTL must be a duration such as 10m")
	}

	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":5000"),
		GRPCAddr:           os.Getenv("GRPC_ADDR"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=registration port=5432 sslmode=disable"),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:        os.Getenv("JWT_AUDIENCE"),
		CascadePath:        getEnv("CASCADE_PATH", "haarcascade_frontalface_default.xml"),
		DetectorAddr:       os.Getenv("DETECTOR_ADDR"),
		DetectorPoolSize:   poolSize,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		PortraitCacheTTL:   cacheTTL,
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
