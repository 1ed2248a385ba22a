package config

import (
	"testing"
	"time"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "LOG_FILE", "DATABASE_URL", "REDIS_URL",
		shutdownSecondsEnvVar, shutdownDurationEnvVar, idemTTLSecondsEnvVar, idemTTLDurEnvVar,
		"LEDGER_BACKEND", "LEDGER_INITIAL_SUPPLY", "LEDGER_DEPLOYER", "LEDGER_RESTRICT_ISSUER",
		"EVENT_FEED_SIZE", "EVENT_CHANNEL", "JWT_SECRET", "JWT_TTL", "ALLOW_CALLER_HEADER",
		"RATE_LIMIT_PER_MINUTE", "AUTO_MIGRATE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerBackend != BackendMemory {
		t.Fatalf("expected memory backend without a database, got %q", cfg.LedgerBackend)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.EventFeedSize != defaultFeedSize || cfg.RateLimitPerMin != defaultRateLimit {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.InitialSupply.IsZero() || cfg.HasDeployer || cfg.RestrictIssuer {
		t.Fatalf("ledger defaults not empty: %+v", cfg)
	}
}

func TestLoadLedgerSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_INITIAL_SUPPLY", "1000000")
	t.Setenv("LEDGER_DEPLOYER", alice)
	t.Setenv("LEDGER_RESTRICT_ISSUER", "true")
	t.Setenv("EVENT_FEED_SIZE", "25")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.InitialSupply.Uint64() != 1_000_000 {
		t.Fatalf("unexpected supply %s", cfg.InitialSupply.Dec())
	}
	if !cfg.HasDeployer || cfg.Deployer.String() != alice {
		t.Fatalf("unexpected deployer %s", cfg.Deployer)
	}
	if !cfg.RestrictIssuer || cfg.EventFeedSize != 25 {
		t.Fatalf("unexpected ledger settings: %+v", cfg)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != 90*time.Second {
		t.Fatalf("unexpected durations: %s %s", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"LEDGER_INITIAL_SUPPLY":  "-5",
		"LEDGER_DEPLOYER":        "not-an-address",
		"LEDGER_BACKEND":         "sqlite",
		"EVENT_FEED_SIZE":        "0",
		"LEDGER_RESTRICT_ISSUER": "maybe",
		"JWT_TTL":                "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadProductionRequiresInfrastructure(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/points")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing JWT_SECRET error")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOW_CALLER_HEADER", "true")
	if _, err := Load(); err == nil {
		t.Fatalf("expected caller header to be rejected in production")
	}

	t.Setenv("ALLOW_CALLER_HEADER", "false")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerBackend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.LedgerBackend)
	}
}
