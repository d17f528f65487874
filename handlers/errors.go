package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Sentinel errors raised inside cache loaders/mutators so the HTTP layer can
// map them onto status codes after the cache machinery returns.
var (
	errNotFound  = errors.New("resource not found")
	errForbidden = errors.New("not allowed to access this resource")
)

// sessionUserID extracts the authenticated user's id placed by the auth
// middleware.
func sessionUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return userID, nil
}

// fetchSuccessful is the common success envelope for reads.
func fetchSuccessful(c *fiber.Ctx, msg string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "successful",
		"message": msg,
		"data":    data,
	})
}

// fetchSuccessfulPage is the success envelope for paginated reads.
func fetchSuccessfulPage(c *fiber.Ctx, msg string, data any, total int) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "successful",
		"message": msg,
		"data":    data,
		"total":   total,
	})
}

// createSuccessful is the success envelope for writes that create resources.
func createSuccessful(c *fiber.Ctx, msg string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "successful",
		"message": msg,
		"data":    data,
	})
}
