package middleware

import (
	"crypto/subtle"

	"leadnest/config"

	"github.com/gofiber/fiber/v2"
)

// CronSecret guards endpoints meant for the external periodic invoker. The
// caller must present the shared secret in the X-Cron-Secret header.
func CronSecret() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := c.Get("X-Cron-Secret")
		expected := config.AppConfig.CronSecret
		if secret == "" || expected == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or missing cron secret",
			})
		}
		return c.Next()
	}
}
