package middleware

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func rateLimitedApp(cache *redis.Client, perMin int) *fiber.App {
	app := fiber.New()
	app.Use(Caller(CallerOptions{AllowHeader: true}))
	app.Use(MutationRateLimit(cache, perMin))
	app.Get("/read", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/write", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func assertLimited(t *testing.T, app *fiber.App) {
	t.Helper()
	const bob = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	headers := map[string]string{callerHeader: alice}

	for i := 0; i < 2; i++ {
		if status, _ := doRequest(t, app, fiber.MethodPost, "/write", headers); status != fiber.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, status)
		}
	}
	if status, _ := doRequest(t, app, fiber.MethodPost, "/write", headers); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", status)
	}
	if status, _ := doRequest(t, app, fiber.MethodGet, "/read", headers); status != fiber.StatusOK {
		t.Fatalf("expected reads to be unlimited, got %d", status)
	}
	if status, _ := doRequest(t, app, fiber.MethodPost, "/write", map[string]string{callerHeader: bob}); status != fiber.StatusOK {
		t.Fatalf("expected another caller to have its own budget, got %d", status)
	}
}

func TestMutationRateLimitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	assertLimited(t, rateLimitedApp(cache, 2))
}

func TestMutationRateLimitInProcess(t *testing.T) {
	assertLimited(t, rateLimitedApp(nil, 2))
}
