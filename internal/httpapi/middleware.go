package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"codeindex/internal/auth"
)

// adminKeyMiddleware guards every mutating route with the optional
// admin API key. A nil or disabled verifier (no key configured) lets
// every request through, since authentication here is thin glue, not
// a core invariant.
func adminKeyMiddleware(verifier *auth.APIKeyVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !verifier.Enabled() {
			return c.Next()
		}
		raw, ok := auth.BearerToken(c.Get("Authorization"))
		if !ok {
			raw = c.Get("X-API-Key")
		}
		if err := verifier.Verify(raw); err != nil {
			return fail(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing or invalid admin api key")
		}
		return c.Next()
	}
}

// healthz reports shallow (process up) or deep (store + redis
// reachable) health depending on the ?deep=true query flag.
func (h *Handlers) healthz(c *fiber.Ctx) error {
	if c.Query("deep") != "true" {
		return c.JSON(fiber.Map{"status": "ok"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.Store.DB.PingContext(ctx); err != nil {
		dbStatus = "error"
	}

	redisStatus := "disabled"
	if h.Redis != nil {
		redisStatus = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			redisStatus = "error"
		}
	}

	status := "ok"
	if dbStatus != "ok" || redisStatus == "error" {
		status = "error"
	}
	return c.JSON(fiber.Map{"status": status, "db": dbStatus, "redis": redisStatus})
}

// redisRateLimit enforces a fixed-window per-IP request cap using a
// Redis counter, shared across every codeindex-api replica the way an
// in-process limiter could not be. Counter keys expire on their own, so
// there is no separate cleanup sweep.
func redisRateLimit(client *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 500*time.Millisecond)
		defer cancel()

		key := "codeindex:ratelimit:" + c.IP() + ":" + time.Now().Truncate(window).Format(time.RFC3339)
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			// Redis unavailable: fail open rather than blocking all traffic.
			return c.Next()
		}
		if count == 1 {
			client.Expire(ctx, key, window)
		}
		if count > int64(limit) {
			return fail(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
		}
		return c.Next()
	}
}
