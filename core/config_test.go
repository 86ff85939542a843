package core

import (
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "SESSION_STORE", "LOGIN_MAX_ATTEMPTS", "ALLOWED_ORIGINS", "SESSION_MAX_AGE_SECONDS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "3000" || cfg.SessionStore != "cookie" || cfg.LoginMaxAttempts != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SessionMaxAgeSeconds != 18000 {
		t.Fatalf("session max age = %d", cfg.SessionMaxAgeSeconds)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("COOKIE_SECURE", "true")
	cfg := Load()
	if cfg.SessionStore != "redis" {
		t.Fatalf("session store = %q", cfg.SessionStore)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.LoginMaxAttempts != 5 || !cfg.CookieSecure {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		GinMode:              gin.DebugMode,
		SessionKey:           defaultSessionKey,
		SessionStore:         "cookie",
		LoginThrottle:        "memory",
		BcryptCost:           10,
		SessionMaxAgeSeconds: 60,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	mutations := map[string]func(*Config){
		"default key in release": func(c *Config) { c.GinMode = gin.ReleaseMode },
		"redis without url":      func(c *Config) { c.SessionStore = "redis" },
		"unknown store":          func(c *Config) { c.SessionStore = "file" },
		"throttle without redis": func(c *Config) { c.LoginThrottle = "redis" },
		"bcrypt cost":            func(c *Config) { c.BcryptCost = 99 },
		"max age":                func(c *Config) { c.SessionMaxAgeSeconds = 0 },
	}
	for name, mutate := range mutations {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
