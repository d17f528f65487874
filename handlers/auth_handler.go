package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/firedev99/glucoguide-backend/config"
	"github.com/firedev99/glucoguide-backend/models"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "gg_session"

type AuthHandler struct {
	config *config.Config
	cache  *cache.Cache
	logger *zap.Logger
	pgPool *pgxpool.Pool
	tokens *utils.JwtTokenGenerator
}

func NewAuthHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool, tokens *utils.JwtTokenGenerator) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		cache:  c,
		logger: logger,
		pgPool: pgPool,
		tokens: tokens,
	}
}

type UserCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

const userSelect = `
	SELECT id, email, password, role, COALESCE(name, ''), COALESCE(gender, ''),
	       COALESCE(img_src, ''), COALESCE(address, '')
	FROM users`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Role, &u.Name,
		&u.Gender, &u.ImgSrc, &u.Address)
	return u, err
}

func userData(u models.User) models.UserData {
	return models.UserData{
		ID:      utils.EncodeID(u.ID),
		Email:   u.Email,
		Role:    u.Role,
		Name:    u.Name,
		Gender:  u.Gender,
		ImgSrc:  u.ImgSrc,
		Address: u.Address,
	}
}

// Register creates a patient account and opens a session for it.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var creds UserCredentials
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if creds.Email == "" || len(creds.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "An email and a password of at least 8 characters are required",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	var exists bool
	if err := h.pgPool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", creds.Email).Scan(&exists); err != nil {
		h.logger.Error("failed to check existing user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register"})
	}
	if exists {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": creds.Email + " already exists",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register"})
	}

	userID := uuid.New()
	_, err = h.pgPool.Exec(ctx, `
		INSERT INTO users (id, email, password, role, name, created_by)
		VALUES ($1, $2, $3, 'patient', NULLIF($4, ''), 'email')`,
		userID, creds.Email, string(hashed), creds.Name)
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register"})
	}

	return h.openSession(c, ctx, models.User{
		ID:    userID,
		Email: creds.Email,
		Role:  "patient",
		Name:  creds.Name,
	}, fiber.StatusCreated, "Successfully registered")
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var creds UserCredentials
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	user, err := scanUser(h.pgPool.QueryRow(ctx, userSelect+" WHERE email = $1", creds.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invalid credentials"})
		}
		h.logger.Error("failed to load user for login", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to login"})
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Password is incorrect"})
	}

	return h.openSession(c, ctx, user, fiber.StatusOK, "Successfully logged in")
}

// Logout revokes the session token and clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if jti, ok := c.Locals("jti").(string); ok && jti != "" {
		if err := h.tokens.InvalidateToken(c.Context(), jti); err != nil {
			h.logger.Warn("failed to revoke session token", zap.Error(err))
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: "Lax",
	})

	return fetchSuccessful(c, "Successfully logged out", nil)
}

// GetProfile returns the session user's account details, cache-aside under
// the profile key.
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Profiles, utils.EncodeID(userID))

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Root(), false,
		func(ctx context.Context) (models.UserData, error) {
			user, err := scanUser(h.pgPool.QueryRow(ctx, userSelect+" WHERE id = $1", userID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.UserData{}, errNotFound
				}
				return models.UserData{}, err
			}
			return userData(user), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		h.logger.Error("failed to load profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve profile"})
	}

	return fetchSuccessful(c, "Successfully retrieved profile", data)
}

// ProfileUpdateRequest carries the account fields a user may change.
// Absent fields are left untouched.
type ProfileUpdateRequest struct {
	Name    *string `json:"name"`
	Gender  *string `json:"gender"`
	Address *string `json:"address"`
}

func (r ProfileUpdateRequest) isEmpty() bool {
	return r.Name == nil && r.Gender == nil && r.Address == nil
}

func buildProfileUpdate(req ProfileUpdateRequest, id uuid.UUID) (string, []any) {
	clauses := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Gender != nil {
		add("gender", *req.Gender)
	}
	if req.Address != nil {
		add("address", *req.Address)
	}

	return strings.Join(clauses, ", "), args
}

// UpdateProfile applies a partial update to the session user's account and
// refreshes the cached profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.isEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	setClause, args := buildProfileUpdate(req, userID)
	if _, err := h.pgPool.Exec(ctx, "UPDATE users SET "+setClause+" WHERE id = $1", args...); err != nil {
		h.logger.Error("failed to update profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	user, err := scanUser(h.pgPool.QueryRow(ctx, userSelect+" WHERE id = $1", userID))
	if err != nil {
		h.logger.Error("failed to reload profile after update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	data := userData(user)
	ks := cache.NewKeys(cache.Profiles, data.ID)
	if err := h.cache.SetJSON(ctx, ks.Root(), data); err != nil {
		h.logger.Warn("failed to refresh cached profile", zap.Error(err))
	}

	return fetchSuccessful(c, "Successfully updated profile", data)
}

// PasswordChangeRequest carries a password rotation. The old password must
// verify against the stored hash before the new one is accepted.
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword rotates the session user's password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.NewPassword) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "New password must be at least 8 characters",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	var currentHash string
	if err := h.pgPool.QueryRow(ctx,
		"SELECT password FROM users WHERE id = $1", userID).Scan(&currentHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		h.logger.Error("failed to load password hash", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to change password"})
	}

	if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(req.OldPassword)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Old password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash new password", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to change password"})
	}

	if _, err := h.pgPool.Exec(ctx,
		"UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1",
		userID, string(hashed)); err != nil {
		h.logger.Error("failed to update password", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to change password"})
	}

	return fetchSuccessful(c, "Successfully changed password", nil)
}

func (h *AuthHandler) openSession(c *fiber.Ctx, ctx context.Context, user models.User, status int, msg string) error {
	token, err := h.tokens.GenerateJWT(ctx, user.ID, user.Role)
	if err != nil {
		h.logger.Error("failed to generate session token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open session"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Expires:  time.Now().Add(time.Duration(h.config.SessionDuration) * time.Hour),
		HTTPOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: "Lax",
	})

	return c.Status(status).JSON(fiber.Map{
		"status":  "successful",
		"message": msg,
		"data":    userData(user),
		"token":   token,
	})
}
