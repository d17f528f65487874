package middleware

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500 so one bad request
// cannot take the process down.
func Recovery(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
					zap.ByteString("stack", debug.Stack()),
				)
				c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Something went wrong",
				})
			}
		}()
		return c.Next()
	}
}
