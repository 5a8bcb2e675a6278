package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/utils"
)

// Locals keys populated by the JWT middlewares.
const (
	LocalTeacherID    = "teacher_id"
	LocalTeacherEmail = "teacher_email"
	LocalTeacherName  = "teacher_name"
)

var errMissingToken = errors.New("authorization header missing")

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	Secret string
	Issuer string
}

// JWTProtected returns a middleware that requires a valid bearer token.
func JWTProtected(cfg JWTConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authenticate(c, cfg); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		return c.Next()
	}
}

// OptionalJWT authenticates the caller when a bearer token is supplied and lets anonymous requests through.
// A token that is present but invalid is still rejected.
func OptionalJWT(cfg JWTConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authenticate(c, cfg); err != nil && !errors.Is(err, errMissingToken) {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, cfg JWTConfig) error {
	authorization := strings.TrimSpace(c.Get("Authorization"))
	if authorization == "" {
		return errMissingToken
	}

	const bearer = "Bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return errors.New("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return errors.New("invalid token")
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	}, options...)
	if err != nil || !token.Valid {
		return errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid token claims")
	}

	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return errors.New("invalid token subject")
	}

	c.Locals(LocalTeacherID, strings.TrimSpace(subject))
	c.Locals(LocalTeacherEmail, stringClaim(claims, "email"))
	c.Locals(LocalTeacherName, stringClaim(claims, "name"))
	return nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// TeacherID returns the authenticated teacher identifier, or an empty string for anonymous callers.
func TeacherID(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalTeacherID).(string); ok {
		return value
	}
	return ""
}
