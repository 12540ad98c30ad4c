package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_DB_DRIVER",
	"SCHEDULER_DB_DSN",
	"SCHEDULER_SESSION_SECRET",
	"SCHEDULER_SESSION_TTL",
	"SCHEDULER_TIMEZONE",
	"SCHEDULER_REDIS_ADDR",
	"SCHEDULER_REDIS_PASSWORD",
	"SCHEDULER_REDIS_CHANNEL",
	"SCHEDULER_RATE_LIMIT",
	"SCHEDULER_LOGIN_RATE_LIMIT",
	"SCHEDULER_LOG_LEVEL",
	"SCHEDULER_BOOTSTRAP_ADMIN_EMAIL",
	"SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		const secret = "super-secret"
		t.Setenv("SCHEDULER_SESSION_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.DBDriver != "sqlite" || cfg.DBDSN != DefaultDSN {
			t.Fatalf("unexpected default database %q %q", cfg.DBDriver, cfg.DBDSN)
		}
		if cfg.SessionSecret != secret {
			t.Fatalf("expected session secret to be %q, got %q", secret, cfg.SessionSecret)
		}
		if cfg.Location == nil || cfg.Location.String() != DefaultTimezone {
			t.Fatalf("expected default zone %s, got %v", DefaultTimezone, cfg.Location)
		}
		if cfg.RedisAddr != "" || cfg.RedisChannel != DefaultRedisChannel {
			t.Fatalf("unexpected redis defaults %q %q", cfg.RedisAddr, cfg.RedisChannel)
		}
		if cfg.RateLimit != 120 || cfg.LoginRateLimit != 10 {
			t.Fatalf("unexpected rate limits %d %d", cfg.RateLimit, cfg.LoginRateLimit)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("expected info level, got %v", cfg.LogLevel)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "nedostaju obavezne varijable okruženja: SCHEDULER_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("postgres requires an explicit DSN", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret")
		t.Setenv("SCHEDULER_DB_DRIVER", "postgres")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "SCHEDULER_DB_DSN") {
			t.Fatalf("expected missing DSN error, got %v", err)
		}
	})

	t.Run("bootstrap email requires a password", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret")
		t.Setenv("SCHEDULER_BOOTSTRAP_ADMIN_EMAIL", "admin@example.com")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD") {
			t.Fatalf("expected missing password error, got %v", err)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret")
		t.Setenv("SCHEDULER_HTTP_PORT", "http")
		t.Setenv("SCHEDULER_DB_DRIVER", "mysql")
		t.Setenv("SCHEDULER_SESSION_TTL", "-1h")
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
		t.Setenv("SCHEDULER_RATE_LIMIT", "-5")
		t.Setenv("SCHEDULER_LOG_LEVEL", "loud")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"SCHEDULER_HTTP_PORT", "SCHEDULER_DB_DRIVER", "SCHEDULER_SESSION_TTL", "SCHEDULER_TIMEZONE", "SCHEDULER_RATE_LIMIT", "SCHEDULER_LOG_LEVEL"} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("expected %s in %q", key, err.Error())
			}
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret-value")
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_DB_DRIVER", "Postgres")
		t.Setenv("SCHEDULER_DB_DSN", "postgres://scheduler@localhost/scheduler?sslmode=disable")
		t.Setenv("SCHEDULER_SESSION_TTL", "12h")
		t.Setenv("SCHEDULER_TIMEZONE", "UTC")
		t.Setenv("SCHEDULER_REDIS_ADDR", "localhost:6379")
		t.Setenv("SCHEDULER_REDIS_CHANNEL", "fleet")
		t.Setenv("SCHEDULER_RATE_LIMIT", "0")
		t.Setenv("SCHEDULER_LOGIN_RATE_LIMIT", "5")
		t.Setenv("SCHEDULER_LOG_LEVEL", "debug")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.DBDriver != "postgres" || !strings.HasPrefix(cfg.DBDSN, "postgres://") {
			t.Fatalf("unexpected database %q %q", cfg.DBDriver, cfg.DBDSN)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.RedisAddr != "localhost:6379" || cfg.RedisChannel != "fleet" {
			t.Fatalf("unexpected redis settings %q %q", cfg.RedisAddr, cfg.RedisChannel)
		}
		if cfg.RateLimit != 0 || cfg.LoginRateLimit != 5 {
			t.Fatalf("unexpected rate limits %d %d", cfg.RateLimit, cfg.LoginRateLimit)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", cfg.LogLevel)
		}
	})
}
