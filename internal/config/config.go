// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetBoolEnv returns a bool environment variable or a default value.
func GetBoolEnv(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// DBConfig holds database connection settings
type DBConfig struct {
	Driver          string
	SQLitePath      string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ToolPolicy is the raw per-tool usage policy: items per UTC day and the
// minimum spacing between two charges. Zero disables a check.
type ToolPolicy struct {
	DailyLimit int
	Cooldown   time.Duration
}

// LedgerConfig holds the wallet policy knobs
type LedgerConfig struct {
	TrialBalance  int64
	DefaultPolicy ToolPolicy
	ToolPolicies  map[string]ToolPolicy
}

// ReconcileConfig drives the stale pending order sweep
type ReconcileConfig struct {
	Interval       time.Duration
	PendingTimeout time.Duration
}

// Config is the full application configuration
type Config struct {
	Port        string
	LogLevel    string
	LogFormat   string
	JWTSecret   string
	CORSOrigins string
	BalanceFeed string

	// StreamLifetime bounds one balance stream; clients reconnect.
	StreamLifetime time.Duration

	OrderRateLimit       int
	OrderRateLimitWindow time.Duration

	DB        DBConfig
	Redis     RedisConfig
	Ledger    LedgerConfig
	Reconcile ReconcileConfig
}

// Load reads the whole configuration from the environment.
func Load() *Config {
	LoadEnv()

	logFormat := "text"
	if IsProduction() {
		logFormat = "json"
	}

	return &Config{
		Port:        GetEnv("PORT", "3000"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", logFormat),
		JWTSecret:   GetEnv("JWT_SECRET", "adforge-dev-secret"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		BalanceFeed: GetEnv("BALANCE_FEED", "redis"),

		StreamLifetime: GetDurationEnv("BALANCE_STREAM_LIFETIME", 30*time.Minute),

		OrderRateLimit:       GetIntEnv("ORDER_RATE_LIMIT", 30),
		OrderRateLimitWindow: GetDurationEnv("ORDER_RATE_LIMIT_WINDOW", time.Minute),

		DB: DBConfig{
			Driver:          GetEnv("DB_DRIVER", "postgres"),
			SQLitePath:      GetEnv("SQLITE_PATH", "adforge.db"),
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "adforge"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		Ledger: LedgerConfig{
			TrialBalance: int64(GetIntEnv("TRIAL_BALANCE", 100)),
			DefaultPolicy: ToolPolicy{
				DailyLimit: GetIntEnv("DEFAULT_DAILY_LIMIT", 0),
				Cooldown:   GetDurationEnv("DEFAULT_COOLDOWN", 0),
			},
			ToolPolicies: ParseToolPolicies(GetEnv("TOOL_POLICIES", "")),
		},
		Reconcile: ReconcileConfig{
			Interval:       GetDurationEnv("RECONCILE_INTERVAL", time.Minute),
			PendingTimeout: GetDurationEnv("PENDING_ORDER_TIMEOUT", 10*time.Minute),
		},
	}
}

// ParseToolPolicies parses "tool:daily:cooldown" items separated by commas,
// e.g. "social:20:30s,ads:10:1m". Malformed items are skipped with a warning.
func ParseToolPolicies(raw string) map[string]ToolPolicy {
	policies := make(map[string]ToolPolicy)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 || parts[0] == "" {
			logrus.WithField("item", item).Warn("ignoring malformed tool policy")
			continue
		}
		daily, err := strconv.Atoi(parts[1])
		if err != nil || daily < 0 {
			logrus.WithField("item", item).Warn("ignoring tool policy with bad daily limit")
			continue
		}
		var cooldown time.Duration
		if parts[2] != "" && parts[2] != "0" {
			cooldown, err = time.ParseDuration(parts[2])
			if err != nil || cooldown < 0 {
				logrus.WithField("item", item).Warn("ignoring tool policy with bad cooldown")
				continue
			}
		}
		policies[parts[0]] = ToolPolicy{DailyLimit: daily, Cooldown: cooldown}
	}
	return policies
}
