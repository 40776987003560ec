// Package config provides centralized default values for CourseSignal
package config

import (
	"bufio"
	"log"
	"os"
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
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
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

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Attribution Policy
	// AttributionLookbackDays bounds how far back a touch may be credited as a
	// purchase's last touch. 0 disables the bound.
	AttributionLookbackDays int

	// Touch validation
	MaxTouchFieldLength int

	// Backfill
	BackfillBatchSize     int
	BackfillBatchInterval time.Duration

	// Purchase stream
	MaxStreamConnections    int
	StreamWriteTimeout      time.Duration
	StreamHeartbeatInterval time.Duration

	// Dashboard reads
	RecentPurchasesMaxLimit  int
	RecentPurchasesDefLimit  int
	DashboardTokenExpiryDays int

	// Analytics cache
	AnalyticsCacheTTL           time.Duration
	AnalyticsCacheSweepInterval time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Attribution Policy
	AttributionLookbackDays = getEnvInt("ATTRIBUTION_LOOKBACK_DAYS", 90)

	// Touch validation
	MaxTouchFieldLength = getEnvInt("MAX_TOUCH_FIELD_LENGTH", 255)

	// Backfill
	BackfillBatchSize = getEnvInt("BACKFILL_BATCH_SIZE", 200)
	BackfillBatchInterval = getEnvDuration("BACKFILL_BATCH_INTERVAL", 250*time.Millisecond)

	// Purchase stream
	MaxStreamConnections = getEnvInt("MAX_STREAM_CONNECTIONS", 1000)
	StreamWriteTimeout = getEnvDuration("STREAM_WRITE_TIMEOUT", 10*time.Second)
	StreamHeartbeatInterval = getEnvDuration("STREAM_HEARTBEAT_INTERVAL", 30*time.Second)

	// Dashboard reads
	RecentPurchasesMaxLimit = getEnvInt("RECENT_PURCHASES_MAX_LIMIT", 100)
	RecentPurchasesDefLimit = getEnvInt("RECENT_PURCHASES_DEFAULT_LIMIT", 20)
	DashboardTokenExpiryDays = getEnvInt("DASHBOARD_TOKEN_EXPIRY_DAYS", 7)

	// Analytics cache
	AnalyticsCacheTTL = getEnvDuration("ANALYTICS_CACHE_TTL", 60*time.Second)
	AnalyticsCacheSweepInterval = getEnvDuration("ANALYTICS_CACHE_SWEEP_INTERVAL", 5*time.Minute)
}
