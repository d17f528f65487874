package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// JwtTokenGenerator manages the generation of unique access tokens
type JwtTokenGenerator struct {
	usedTokens map[string]bool
	mutex      sync.Mutex
	cache      *cache.Cache
	secretKey  []byte
	lifetime   time.Duration
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator
func NewJwtTokenGenerator(c *cache.Cache, secretKey string, lifetime time.Duration) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		usedTokens: make(map[string]bool),
		cache:      c,
		secretKey:  []byte(secretKey),
		lifetime:   lifetime,
	}
}

// GenerateJWT creates a signed token for the given user with their role baked
// into the claims.
func (g *JwtTokenGenerator) GenerateJWT(ctx context.Context, userID uuid.UUID, role string) (string, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Generate unique token identifier
	jti := uuid.New().String()
	for g.usedTokens[jti] {
		jti = uuid.New().String()
	}
	g.usedTokens[jti] = true

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(g.lifetime).Unix(),
		"iat":  time.Now().Unix(),
		"jti":  jti,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	// Cache the token claims for the token's own lifetime so logout can
	// revoke them before expiry
	if err := g.cache.SetJSONWithTTL(ctx, "jwt:"+jti, claims, g.lifetime); err != nil {
		return "", errors.Wrap(err, "failed to cache token")
	}

	return signedToken, nil
}

// VerifyJWT verifies and parses a token, rejecting revoked or tampered ones.
func (g *JwtTokenGenerator) VerifyJWT(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return g.secretKey, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	jti, ok := claims["jti"].(string)
	if !ok {
		return nil, errors.New("invalid token identifier")
	}

	var cachedClaims jwt.MapClaims
	if err := g.cache.GetJSON(ctx, "jwt:"+jti, &cachedClaims); err != nil {
		return nil, errors.Wrap(err, "token has been revoked")
	}

	return claims, nil
}

// InvalidateToken removes a token from the cache and used tokens
func (g *JwtTokenGenerator) InvalidateToken(ctx context.Context, jti string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	delete(g.usedTokens, jti)
	return g.cache.Delete(ctx, "jwt:"+jti)
}
