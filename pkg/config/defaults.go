// Package config provides centralized default values for EduTok
package config

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, redact(key, val), defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
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

// redact hides secrets in override logs.
func redact(key, value string) string {
	upper := strings.ToUpper(key)
	if strings.Contains(upper, "SECRET") || strings.Contains(upper, "TOKEN") || strings.Contains(upper, "KEY") {
		return "****"
	}
	return value
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	GinReleaseMode     bool
	CORSOrigins        []string

	// Storage
	DataDir          string
	RealtimeDBPath   string
	LocalCachePath   string
	MediaDir         string
	TursoDatabaseURL string
	TursoAuthToken   string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration
	SlowRequestThreshold     time.Duration

	// Auth
	JWTSecret      string
	JWTIssuer      string
	QRSessionTTL   time.Duration
	QRTokenTTL     time.Duration
	RoleCacheTTL   time.Duration
	SessionIdleTTL time.Duration

	// Feed and views
	FeedLiveWindow     int
	FeedPageSize       int
	MessagesLiveWindow int
	RemoteWriteTimeout time.Duration

	// TTL Configuration
	FeedCacheTTL          time.Duration
	ReferenceCacheTTL     time.Duration
	GradesCacheTTL        time.Duration
	MessagesCacheTTL      time.Duration
	ConversationsCacheTTL time.Duration
	ProfilesCacheTTL      time.Duration

	// Workers
	CleanupInterval  time.Duration
	CleanupVerbose   bool
	WarmTaskTimeout  time.Duration
	WarmConcurrency  int
	LiveWriteTimeout time.Duration

	// Assistant
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIModel            string
	AssistantRatePerMinute int
	AssistantBurst         int

	// Email
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	// Logging
	LogDirectory string
	LogToFile    bool
	LogJSON      bool
	LogLevel     string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	GinReleaseMode = getEnvString("GIN_MODE", "") == "release"
	CORSOrigins = splitList(getEnvString("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173,http://127.0.0.1:5173"))

	// Storage
	DataDir = getEnvString("DATA_DIR", "data")
	RealtimeDBPath = getEnvString("REALTIME_DB_PATH", filepath.Join(DataDir, "realtime.db"))
	LocalCachePath = getEnvString("LOCAL_CACHE_PATH", filepath.Join(DataDir, "localcache.db"))
	MediaDir = getEnvString("MEDIA_DIR", filepath.Join(DataDir, "media"))
	TursoDatabaseURL = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvString("TURSO_AUTH_TOKEN", "")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)
	SlowRequestThreshold = getEnvDuration("SLOW_REQUEST_THRESHOLD", time.Second)

	// Auth
	JWTSecret = getEnvString("JWT_SECRET", "")
	JWTIssuer = getEnvString("JWT_ISSUER", "edutok")
	QRSessionTTL = getEnvDuration("QR_SESSION_TTL", 90*time.Second)
	QRTokenTTL = getEnvDuration("QR_TOKEN_TTL", time.Hour)
	RoleCacheTTL = getEnvDuration("ROLE_CACHE_TTL", 5*time.Minute)
	SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 2*time.Hour)

	// Feed and views
	FeedLiveWindow = getEnvInt("FEED_LIVE_WINDOW", 30)
	FeedPageSize = getEnvInt("FEED_PAGE_SIZE", 20)
	MessagesLiveWindow = getEnvInt("MESSAGES_LIVE_WINDOW", 100)
	RemoteWriteTimeout = getEnvDuration("REMOTE_WRITE_TIMEOUT", 10*time.Second)

	// TTL Configuration
	FeedCacheTTL = getEnvDuration("FEED_CACHE_TTL", 10*time.Minute)
	ReferenceCacheTTL = getEnvDuration("REFERENCE_CACHE_TTL", time.Hour)
	GradesCacheTTL = getEnvDuration("GRADES_CACHE_TTL", 30*time.Minute)
	MessagesCacheTTL = getEnvDuration("MESSAGES_CACHE_TTL", 15*time.Minute)
	ConversationsCacheTTL = getEnvDuration("CONVERSATIONS_CACHE_TTL", 15*time.Minute)
	ProfilesCacheTTL = getEnvDuration("PROFILES_CACHE_TTL", 30*time.Minute)

	// Workers
	CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute)
	CleanupVerbose = getEnvBool("CLEANUP_VERBOSE", false)
	WarmTaskTimeout = getEnvDuration("WARM_TASK_TIMEOUT", 8*time.Second)
	WarmConcurrency = getEnvInt("WARM_CONCURRENCY", 5)
	LiveWriteTimeout = getEnvDuration("LIVE_WRITE_TIMEOUT", 10*time.Second)

	// Assistant
	OpenAIAPIKey = getEnvString("OPENAI_API_KEY", "")
	OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	AssistantRatePerMinute = getEnvInt("ASSISTANT_RATE_PER_MINUTE", 20)
	AssistantBurst = getEnvInt("ASSISTANT_BURST", 5)

	// Email
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "noreply@edutok.app")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", "EduTok")

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogJSON = getEnvBool("LOG_JSON", true)
	LogLevel = getEnvString("LOG_LEVEL", "INFO")
}
