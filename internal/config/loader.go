package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DefaultDSN          = "file:scheduler.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	DefaultTimezone     = "Europe/Zagreb"
	DefaultRedisChannel = "reservations:changed"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort       int
	DBDriver       string
	DBDSN          string
	SessionSecret  string
	SessionTTL     time.Duration
	Location       *time.Location
	RedisAddr      string
	RedisPassword  string
	RedisChannel   string
	RateLimit      int
	LoginRateLimit int
	LogLevel       slog.Level

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields while validating required
// values, reporting every missing or invalid entry in one error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		DBDriver:       "sqlite",
		DBDSN:          DefaultDSN,
		SessionTTL:     24 * time.Hour,
		RedisChannel:   DefaultRedisChannel,
		RateLimit:      120,
		LoginRateLimit: 10,
		LogLevel:       slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("SCHEDULER_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(env("SCHEDULER_DB_DRIVER")); driver != "" {
		switch driver {
		case "sqlite", "postgres":
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, "SCHEDULER_DB_DRIVER")
		}
	}

	if dsn := env("SCHEDULER_DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	} else if cfg.DBDriver == "postgres" {
		missing = append(missing, "SCHEDULER_DB_DSN")
	}

	if secret := env("SCHEDULER_SESSION_SECRET"); secret == "" {
		missing = append(missing, "SCHEDULER_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := env("SCHEDULER_SESSION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	zone := env("SCHEDULER_TIMEZONE")
	if zone == "" {
		zone = DefaultTimezone
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	cfg.RedisAddr = env("SCHEDULER_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("SCHEDULER_REDIS_PASSWORD")
	if channel := env("SCHEDULER_REDIS_CHANNEL"); channel != "" {
		cfg.RedisChannel = channel
	}

	if limit, ok := parseNonNegative("SCHEDULER_RATE_LIMIT", cfg.RateLimit); ok {
		cfg.RateLimit = limit
	} else {
		invalid = append(invalid, "SCHEDULER_RATE_LIMIT")
	}
	if limit, ok := parseNonNegative("SCHEDULER_LOGIN_RATE_LIMIT", cfg.LoginRateLimit); ok {
		cfg.LoginRateLimit = limit
	} else {
		invalid = append(invalid, "SCHEDULER_LOGIN_RATE_LIMIT")
	}

	if levelValue := env("SCHEDULER_LOG_LEVEL"); levelValue != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	cfg.BootstrapAdminEmail = env("SCHEDULER_BOOTSTRAP_ADMIN_EMAIL")
	cfg.BootstrapAdminPassword = os.Getenv("SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD")
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword == "" {
		missing = append(missing, "SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("nedostaju obavezne varijable okruženja: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("neispravne vrijednosti varijabli okruženja: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseNonNegative(key string, fallback int) (int, bool) {
	value := env(key)
	if value == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
