package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// Logger returns a middleware that logs HTTP requests at debug level, along
// with the request and idempotency identifiers sent by the job client
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := map[string]interface{}{
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
			"method":  c.Method(),
			"path":    c.Path(),
			"handler": c.Route().Name,
		}
		if id := c.Get(client.HeaderRequestID); id != "" {
			fields["request_id"] = id
		}
		if key := c.Get(client.HeaderIdempotencyKey); key != "" {
			fields["idempotency_key"] = key
		}
		if err != nil {
			fields["error"] = err.Error()
			logger.WarnWithFields("Request failed", fields)
			return err
		}
		logger.DebugWithFields("Request", fields)
		return nil
	}
}
