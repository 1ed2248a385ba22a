package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/congo_points/internal/auth"
	"github.com/congo-pay/congo_points/internal/config"
	"github.com/congo-pay/congo_points/internal/ledger"
	"github.com/congo-pay/congo_points/internal/metrics"
	"github.com/congo-pay/congo_points/internal/middleware"
	"github.com/congo-pay/congo_points/internal/notification"
	"github.com/congo-pay/congo_points/internal/rewards"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Host overrides the ledger host chosen from Cfg. Used by tests.
	Host ledger.Host
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	host := d.Host
	if host == nil {
		switch {
		case d.Cfg.LedgerBackend == config.BackendPostgres && d.DB != nil:
			host = ledger.NewPostgresLedger(d.DB, d.Cfg.EventFeedSize)
		case d.Cfg.LedgerBackend == config.BackendPostgres:
			return fmt.Errorf("postgres ledger backend selected without a database")
		default:
			host = ledger.NewInMemory(d.Cfg.EventFeedSize)
		}
	}

	notifiers := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		notifiers = append(notifiers, notification.NewRedisNotifier(d.Cache, d.Cfg.EventChannel))
	}
	ledgerMetrics := metrics.New()
	svc := rewards.NewService(host, notifiers, ledgerMetrics, d.Logger, rewards.Options{
		RestrictIssuer: d.Cfg.RestrictIssuer,
	})

	if d.Cfg.HasDeployer {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dep, err := svc.EnsureDeployed(ctx, d.Cfg.Deployer, d.Cfg.InitialSupply)
		if err != nil {
			return fmt.Errorf("deploy ledger: %w", err)
		}
		if dep.Deployer != d.Cfg.Deployer {
			d.Logger.Warn("ledger was deployed by a different account",
				slog.String("deployer", dep.Deployer.String()),
				slog.String("configured", d.Cfg.Deployer.String()),
			)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	var tokens *auth.Tokens
	if d.Cfg.JWTSecret != "" {
		tokens = auth.NewTokens(d.Cfg.JWTSecret)
	}
	app.Use(middleware.Caller(middleware.CallerOptions{
		Tokens:      tokens,
		AllowHeader: d.Cfg.AllowCallerHeader,
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health and metrics
	RegisterHealthRoutes(app, d, svc)
	RegisterMetricsRoute(app, ledgerMetrics)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	rateLimiter := middleware.MutationRateLimit(d.Cache, d.Cfg.RateLimitPerMin)
	RegisterPointsRoutes(api, rewards.NewHandler(svc), rateLimiter)

	return nil
}
