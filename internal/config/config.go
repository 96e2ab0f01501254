// Package config centralizes environment configuration for both the
// gateway and the worker, and resolves dev-vs-production variants once
// at construction time (spec §9, "dynamic configuration dispatch").
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Gateway holds the Ingest Gateway's configuration.
type Gateway struct {
	Port             string
	Env              string
	DatabaseURL      string
	RedisURL         string
	QueueName        string
	DeadLetterQueue  string
	AuthJWTSecret    string
	AllowedOrigins   []string
	FreeTierMonthly  int
	UploadRatePerMin int
	ReadRatePerMin   int
	MaxUploadBytes   int64
	DevMode          bool

	Storage StorageConfig
}

// Worker holds the Protection Worker's configuration.
type Worker struct {
	Env                 string
	DatabaseURL         string
	RedisURL            string
	QueueName           string
	DeadLetterQueue     string
	HealthPort          string
	PerturbationEpsilon int
	PerturbationSteps   int
	ObjectStorePublic   string
	SigningCertPEM      string
	SigningKeyPEM       string
	DevMode             bool

	Storage StorageConfig
}

// StorageConfig describes the object store endpoint as a generic
// S3-compatible endpoint (rather than a Cloudflare-R2-specific one),
// per spec §4.4.
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
}

const defaultFreeTierMonthly = 5

// LoadGateway reads and validates Ingest Gateway configuration.
func LoadGateway() (*Gateway, error) {
	cfg := &Gateway{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		QueueName:        getEnv("QUEUE_NAME", "lore_anchor_tasks"),
		DeadLetterQueue:  getEnv("DEAD_LETTER_QUEUE_NAME", "lore_anchor_dead_letters"),
		AuthJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		AllowedOrigins:   getAllowedOrigins(),
		FreeTierMonthly:  getEnvInt("FREE_TIER_MONTHLY_CAP", defaultFreeTierMonthly),
		UploadRatePerMin: getEnvInt("UPLOAD_RATE_PER_MIN", 10),
		ReadRatePerMin:   getEnvInt("READ_RATE_PER_MIN", 60),
		MaxUploadBytes:   20 * 1024 * 1024,
		DevMode:          getEnvBool("DEV_MODE", false),
		Storage:          loadStorageConfig(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.AuthJWTSecret == "" && !cfg.DevMode {
		return nil, fmt.Errorf("AUTH_JWT_SECRET environment variable is required outside dev mode")
	}

	return cfg, nil
}

// LoadWorker reads and validates Protection Worker configuration.
func LoadWorker() (*Worker, error) {
	cfg := &Worker{
		Env:                 getEnv("ENV", "development"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		QueueName:           getEnv("QUEUE_NAME", "lore_anchor_tasks"),
		DeadLetterQueue:     getEnv("DEAD_LETTER_QUEUE_NAME", "lore_anchor_dead_letters"),
		HealthPort:          getEnv("WORKER_HEALTH_PORT", "9090"),
		PerturbationEpsilon: getEnvInt("PERTURBATION_EPSILON", 8),
		PerturbationSteps:   getEnvInt("PERTURBATION_STEPS", 3),
		ObjectStorePublic:   os.Getenv("OBJECT_STORE_PUBLIC_BASE"),
		SigningCertPEM:      os.Getenv("SIGNING_CERT"),
		SigningKeyPEM:       os.Getenv("SIGNING_KEY"),
		DevMode:             getEnvBool("WORKER_DEV_MODE", false),
		Storage:             loadStorageConfig(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Open Question resolved in spec §9: refuse to start with the
	// developer self-signed certificate outside an explicit dev mode.
	if (cfg.SigningCertPEM == "" || cfg.SigningKeyPEM == "") && !cfg.DevMode {
		return nil, fmt.Errorf("SIGNING_CERT and SIGNING_KEY are required unless WORKER_DEV_MODE=true")
	}

	return cfg, nil
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Endpoint:        os.Getenv("OBJECT_STORE_ENDPOINT"),
		Region:          getEnv("OBJECT_STORE_REGION", "auto"),
		AccessKeyID:     os.Getenv("OBJECT_STORE_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("OBJECT_STORE_SECRET_ACCESS_KEY"),
		Bucket:          os.Getenv("OBJECT_STORE_BUCKET"),
		PublicBaseURL:   os.Getenv("OBJECT_STORE_PUBLIC_BASE"),
	}
}

// getAllowedOrigins returns a slice of allowed CORS origins from the
// environment, defaulting to localhost for local development.
func getAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// MonthStart returns the start of the current calendar month in UTC, used
// by the quota package to compute month-to-date upload counts.
func MonthStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
