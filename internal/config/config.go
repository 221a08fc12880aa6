package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Addr         string
	StoreBackend string // "sql" or "mongo"
	SQLDriver    string // "sqlite3" or "postgres"
	SQLDSN       string
	MongoURL     string
	MongoDB      string
	SecretKey    string
	UploadDir    string
	PublicURL    string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load loads configuration from environment variables.
func Load() *Config {
	// Load .env file if it exists (useful for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Addr:         getenv("ADDR", ":8080"),
		StoreBackend: getenv("STORE_BACKEND", "sql"),
		SQLDriver:    getenv("SQL_DRIVER", "sqlite3"),
		SQLDSN:       getenv("SQL_DSN", "quickchat.db"),
		MongoURL:     getenv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:      getenv("MONGO_DB", "quickchat"),
		SecretKey:    getenv("SECRET_KEY", "super-secret-key-change-me-in-production"),
		UploadDir:    getenv("UPLOAD_DIR", "uploads"),
		PublicURL:    getenv("PUBLIC_URL", "http://localhost:8080"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getenv("SMTP_FROM", "no-reply@quickchat.local"),
	}
}
