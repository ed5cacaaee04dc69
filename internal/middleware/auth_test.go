package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"directchat/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthRequired(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret, JWTIssuer: "directchat-idp", JWTAudience: "directchat"}

	app := fiber.New()
	app.Get("/test", AuthRequired(cfg), func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"userID": UserID(c),
			"email":  Email(c),
			"ctxUID": c.UserContext().Value(UserIDKey),
		})
	})

	claims := func(sub string, exp time.Duration) jwt.MapClaims {
		return jwt.MapClaims{
			"sub":   sub,
			"email": "alice@example.com",
			"iss":   "directchat-idp",
			"aud":   "directchat",
			"exp":   time.Now().Add(exp).Unix(),
		}
	}

	wrongIssuer := claims("firebase-uid-1", time.Hour)
	wrongIssuer["iss"] = "someone-else"

	noSubject := claims("", time.Hour)
	delete(noSubject, "sub")

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID string
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + signToken(t, claims("firebase-uid-1", time.Hour), jwt.SigningMethodHS256, testSecret),
			expectedStatus: http.StatusOK,
			expectedUserID: "firebase-uid-1",
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signToken(t, claims("firebase-uid-1", -time.Hour), jwt.SigningMethodHS256, testSecret),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret",
			authHeader:     "Bearer " + signToken(t, claims("firebase-uid-1", time.Hour), jwt.SigningMethodHS256, "another-secret-another-secret-123"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Issuer",
			authHeader:     "Bearer " + signToken(t, wrongIssuer, jwt.SigningMethodHS256, testSecret),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Subject",
			authHeader:     "Bearer " + signToken(t, noSubject, jwt.SigningMethodHS256, testSecret),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedUserID, body["userID"])
				assert.Equal(t, tt.expectedUserID, body["ctxUID"])
				assert.Equal(t, "alice@example.com", body["email"])
			} else {
				assert.Equal(t, "client_error", body["result"])
				assert.Equal(t, "UNAUTHORIZED", body["code"])
			}
		})
	}
}

func TestAuthRequired_NoIssuerConfigured(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	app := fiber.New()
	app.Get("/test", AuthRequired(cfg), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	token := signToken(t, jwt.MapClaims{"sub": "u-42", "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
