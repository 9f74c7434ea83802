// internal/infra/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// LocalStore backends.
const (
	LocalStoreMemory = "memory"
	LocalStoreFile   = "file"
	LocalStoreRedis  = "redis"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port    string
	LogFile string

	GCPCreds                 string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	CartsCollection          string

	// Firebase Auth 用のプロジェクトID
	FirebaseProjectID string
	// Secret Manager secret id holding a service account JSON (optional).
	FirebaseCredentialsSecret string

	// Device-local store for anonymous carts.
	LocalStore    string
	LocalStoreDir string
	RedisAddr     string

	RemoteTimeout     time.Duration
	RemoteLoadRetries int
	SessionIdleTTL    time.Duration

	CORSAllowOrigin string
	OTLPEndpoint    string
}

// Load は環境変数を読み込み Config を返します。
func Load() *Config {
	defaultProject := getenvDefault("GCP_PROJECT_ID", "")

	cfg := &Config{
		Port:    getenvDefault("PORT", "8080"),
		LogFile: os.Getenv("LOG_FILE"),

		GCPCreds:                 os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		CartsCollection:          getenvDefault("CARTS_COLLECTION", "carts"),

		// FIREBASE_PROJECT_ID が未指定なら GCP のデフォルトを使う
		FirebaseProjectID:         getenvDefault("FIREBASE_PROJECT_ID", defaultProject),
		FirebaseCredentialsSecret: strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS_SECRET")),

		LocalStore:    strings.ToLower(getenvDefault("LOCAL_STORE", LocalStoreMemory)),
		LocalStoreDir: getenvDefault("LOCAL_STORE_DIR", "./data/localstore"),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),

		RemoteTimeout:     getenvDuration("REMOTE_TIMEOUT", 10*time.Second),
		RemoteLoadRetries: getenvInt("REMOTE_LOAD_RETRIES", 3),
		SessionIdleTTL:    getenvDuration("SESSION_IDLE_TTL", 30*time.Minute),

		CORSAllowOrigin: getenvDefault("CORS_ALLOW_ORIGIN", "*"),
		OTLPEndpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	return cfg
}

// GetFirestoreProjectID は Firestore/GCP プロジェクト ID を返します。
func (c *Config) GetFirestoreProjectID() string {
	return c.FirestoreProjectID
}

// GetFirebaseProjectID returns the Firebase project, falling back to the Firestore one.
func (c *Config) GetFirebaseProjectID() string {
	if strings.TrimSpace(c.FirebaseProjectID) != "" {
		return c.FirebaseProjectID
	}
	return c.FirestoreProjectID
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] WARN: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] WARN: %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}
