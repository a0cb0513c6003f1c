package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                  string
	MongoURI             string
	MongoDB              string
	ServerAddr           string
	FrontendOrigin       string
	APIKey               string
	RateLimitBookings    int
	RateLimitLogin       int
	RateLimitWindowSec   int
	RedisURL             string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	CacheTTLSeconds      int
	SlotStepMinutes      int
	SessionSecret        string
	SessionTTLMinutes    int
	BrevoAPIKey          string
	BrevoSenderEmail     string
	BrevoSenderName      string
	BrevoSandbox         bool
	OwnerEmail           string
	ReminderIntervalMin  int
	TokenCleanupInterval int
	LogFile              string
	LogLevel             string
	Timezone             *time.Location
}

var ErrMissingAPIKey = errors.New("API_KEY is required outside development")

var ErrMissingSessionSecret = errors.New("SESSION_SECRET is required outside development")

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// Load reads the process environment, after merging a local .env file if one
// exists. Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "America/Argentina/Buenos_Aires"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/barberia")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "barberia"
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		MongoURI:             mongoURI,
		MongoDB:              mongoDB,
		ServerAddr:           getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigin:       getEnv("FRONTEND_ORIGIN", "http://localhost:5173"),
		APIKey:               getEnv("API_KEY", ""),
		RateLimitBookings:    getEnvInt("RATE_LIMIT_BOOKINGS", 10),
		RateLimitLogin:       getEnvInt("RATE_LIMIT_LOGIN", 10),
		RateLimitWindowSec:   getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:      getEnvInt("CACHE_TTL_SECONDS", 60),
		SlotStepMinutes:      getEnvInt("SLOT_STEP_MINUTES", 15),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionTTLMinutes:    getEnvInt("SESSION_TTL_MINUTES", 24*60),
		BrevoAPIKey:          getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:     getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:      getEnv("BREVO_SENDER_NAME", "Barbería Central"),
		BrevoSandbox:         getEnvBool("BREVO_SANDBOX", false),
		OwnerEmail:           getEnv("OWNER_EMAIL", ""),
		ReminderIntervalMin:  getEnvInt("REMINDER_INTERVAL_MINUTES", 60),
		TokenCleanupInterval: getEnvInt("TOKEN_CLEANUP_INTERVAL_MINUTES", 6*60),
		LogFile:              getEnv("LOG_FILE", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Timezone:             loc,
	}

	if cfg.SlotStepMinutes <= 0 {
		cfg.SlotStepMinutes = 15
	}

	if cfg.APIKey == "" && !cfg.IsDevelopment() {
		return nil, ErrMissingAPIKey
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, ErrMissingSessionSecret
		}
		// Tokens signed with a random secret do not survive a restart.
		cfg.SessionSecret = randomSecret()
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}
