package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	VerifyToken   string
	WhatsAppToken string
	PhoneNumberID string
	GraphAPIURL   string

	DBDriver string // postgres or sqlite
	DBDSN    string

	RedisAddr string

	// Pause before an automated reply goes out, so the bot does not
	// answer within the same millisecond the question arrived.
	AutoReplyDelay time.Duration

	// Spacing between sequential broadcast sends (provider rate limits).
	BroadcastInterval time.Duration
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		VerifyToken:       getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken:     getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:     getEnv("PHONE_NUMBER_ID", ""),
		GraphAPIURL:       getEnv("GRAPH_API_URL", "https://graph.facebook.com/v22.0"),
		DBDriver:          getEnv("DB_DRIVER", "postgres"),
		DBDSN:             getEnv("DB_DSN", "host=localhost user=postgres password=postgres dbname=whatsapp_crm port=5432 sslmode=disable"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		AutoReplyDelay:    getEnvMillis("AUTO_REPLY_DELAY_MS", 500),
		BroadcastInterval: getEnvMillis("BROADCAST_INTERVAL_MS", 1000),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		log.Printf("Warning: invalid %s, using default of %dms", key, fallback)
	}
	return time.Duration(fallback) * time.Millisecond
}
