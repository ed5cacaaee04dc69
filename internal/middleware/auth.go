// Package middleware provides authentication, logging, metrics and rate limiting for the HTTP API.
package middleware

import (
	"context"
	"strings"

	"directchat/internal/config"
	"directchat/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	localUserID = "userID"
	localEmail  = "email"
)

// AuthRequired verifies the bearer token issued by the identity provider and
// stores the caller id (the "sub" claim) and optional email in the request.
// The id is opaque; it is never parsed.
func AuthRequired(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Authorization header required"))
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid authorization header format"))
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
		if cfg.JWTIssuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
		}
		if cfg.JWTAudience != "" {
			opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, opts...)
		if err != nil || !token.Valid {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid token claims"))
		}

		sub, err := claims.GetSubject()
		if err != nil || strings.TrimSpace(sub) == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid token structure - missing subject"))
		}

		c.Locals(localUserID, sub)
		if email, ok := claims["email"].(string); ok {
			c.Locals(localEmail, strings.TrimSpace(email))
		}

		ctx := context.WithValue(c.UserContext(), UserIDKey, sub)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// UserID returns the authenticated caller id, or "" when the route is public.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(localUserID).(string)
	return uid
}

// Email returns the email claim of the authenticated caller, if any.
func Email(c *fiber.Ctx) string {
	email, _ := c.Locals(localEmail).(string)
	return email
}
