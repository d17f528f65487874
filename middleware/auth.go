package middleware

import (
	"strings"

	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthMiddleware validates bearer tokens and loads the caller's identity
// into request locals.
type AuthMiddleware struct {
	logger *zap.Logger
	tokens *utils.JwtTokenGenerator
}

func NewAuthMiddleware(logger *zap.Logger, tokens *utils.JwtTokenGenerator) *AuthMiddleware {
	return &AuthMiddleware{
		logger: logger,
		tokens: tokens,
	}
}

// Handler authenticates the request. Downstream handlers read
// c.Locals("userID") (uuid.UUID), c.Locals("role") and c.Locals("jti").
func (m *AuthMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var tokenString string

		auth := c.Get("Authorization")
		if auth != "" && strings.HasPrefix(auth, "Bearer ") {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}

		// Fall back to cookie for browser clients
		if tokenString == "" {
			tokenString = c.Cookies("gg_session")
		}

		if tokenString == "" {
			m.logger.Debug("no authentication found",
				zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
				"code":  "NO_SESSION",
			})
		}

		claims, err := m.tokens.VerifyJWT(c.Context(), tokenString)
		if err != nil {
			m.logger.Debug("invalid session token",
				zap.String("path", c.Path()),
				zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session",
				"code":  "SESSION_INVALID",
			})
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session",
				"code":  "SESSION_INVALID",
			})
		}

		role, _ := claims["role"].(string)
		jti, _ := claims["jti"].(string)

		c.Locals("userID", userID)
		c.Locals("role", role)
		c.Locals("jti", jti)

		return c.Next()
	}
}

// RequireRole restricts a route group to the given roles. Must run after
// Handler.
func (m *AuthMiddleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		m.logger.Debug("role not permitted",
			zap.String("path", c.Path()),
			zap.String("role", role))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not allowed to access this resource",
			"code":  "FORBIDDEN",
		})
	}
}
