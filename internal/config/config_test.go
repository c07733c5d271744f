package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "SCHEDULE_STORE", "OPEN_HOUR", "CLOSE_HOUR", "LLM_TIMEOUT", "CORS_ALLOWED_ORIGINS", "GEMINI_MODEL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ScheduleStore != StoreSheets {
		t.Fatalf("expected sheets store by default, got %s", cfg.ScheduleStore)
	}
	if cfg.OpenHour != 9 || cfg.CloseHour != 18 {
		t.Fatalf("expected 09-18 window, got %d-%d", cfg.OpenHour, cfg.CloseHour)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Fatalf("expected 30s llm timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.GeminiModel != "gemini-1.5-pro-latest" {
		t.Fatalf("unexpected default gemini model %s", cfg.GeminiModel)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULE_STORE", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("OPEN_HOUR", "8")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port override, got %s", cfg.Port)
	}
	if cfg.ScheduleStore != StorePostgres {
		t.Fatalf("expected normalized store name, got %q", cfg.ScheduleStore)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("unexpected database url %s", cfg.DatabaseURL)
	}
	if cfg.OpenHour != 8 {
		t.Fatalf("expected open hour 8, got %d", cfg.OpenHour)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.LLMTimeout)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Fatalf("expected rps 0.5, got %v", cfg.RateLimitRPS)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CLOSE_HOUR", "late")
	t.Setenv("WRITE_LOCK_TTL", "forever")
	cfg := Load()
	if cfg.CloseHour != 18 {
		t.Fatalf("expected fallback close hour, got %d", cfg.CloseHour)
	}
	if cfg.WriteLockTTL != 10*time.Second {
		t.Fatalf("expected fallback lock ttl, got %s", cfg.WriteLockTTL)
	}
}
