package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/points"
)

const (
	defaultAppName         = "CongoPoints"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultJWTTTL          = time.Hour
	defaultFeedSize        = 100
	defaultRateLimit       = 60
	defaultEventChannel    = "points:events"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFile        string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	LedgerBackend  string
	InitialSupply  uint256.Int
	Deployer       account.ID
	HasDeployer    bool
	RestrictIssuer bool
	EventFeedSize  int
	EventChannel   string

	JWTSecret         string
	JWTTTL            time.Duration
	AllowCallerHeader bool
	RateLimitPerMin   int
	AutoMigrate       bool
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFile:         os.Getenv("LOG_FILE"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		EventFeedSize:   defaultFeedSize,
		EventChannel:    getEnv("EVENT_CHANNEL", defaultEventChannel),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTTTL:          defaultJWTTTL,
		RateLimitPerMin: defaultRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JWT_TTL: %w", err)
		}
		cfg.JWTTTL = d
	}

	if cfg.EventFeedSize, err = intEnv("EVENT_FEED_SIZE", cfg.EventFeedSize); err != nil {
		return Config{}, err
	}
	if cfg.EventFeedSize <= 0 {
		return Config{}, fmt.Errorf("EVENT_FEED_SIZE must be positive")
	}
	if cfg.RateLimitPerMin, err = intEnv("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMin); err != nil {
		return Config{}, err
	}

	for key, dst := range map[string]*bool{
		"LEDGER_RESTRICT_ISSUER": &cfg.RestrictIssuer,
		"ALLOW_CALLER_HEADER":    &cfg.AllowCallerHeader,
		"AUTO_MIGRATE":           &cfg.AutoMigrate,
	} {
		if *dst, err = boolEnv(key, false); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("LEDGER_INITIAL_SUPPLY"); v != "" {
		supply, err := points.ParseAmount(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LEDGER_INITIAL_SUPPLY: %w", err)
		}
		cfg.InitialSupply = supply
	}
	if v := os.Getenv("LEDGER_DEPLOYER"); v != "" {
		id, err := account.Parse(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LEDGER_DEPLOYER: %w", err)
		}
		cfg.Deployer = id
		cfg.HasDeployer = true
	}

	cfg.LedgerBackend = strings.ToLower(os.Getenv("LEDGER_BACKEND"))
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = BackendMemory
		if cfg.DatabaseURL != "" {
			cfg.LedgerBackend = BackendPostgres
		}
	}
	switch cfg.LedgerBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set for the postgres ledger backend")
		}
	default:
		return Config{}, fmt.Errorf("invalid LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
		if cfg.AllowCallerHeader {
			return Config{}, fmt.Errorf("ALLOW_CALLER_HEADER is only permitted in development")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv prefers the whole-seconds variable over the duration string one.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
