package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unscored/internal/config"
	"unscored/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestAuth(t *testing.T) *AdminAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminAuth(&config.Config{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		JWTSecret:         testSecret,
	})
}

func TestAdminLogin(t *testing.T) {
	auth := newTestAuth(t)

	token, err := auth.Login("admin", "hunter2")
	require.NoError(t, err)
	name, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", name)

	_, err = auth.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login("root", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewAdminAuth(&config.Config{JWTSecret: testSecret}).Login("", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminRequired(t *testing.T) {
	auth := newTestAuth(t)
	app := fiber.New()
	app.Get("/admin", auth.AdminRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"admin": c.Locals("admin")})
	})

	valid, err := auth.Login("admin", "hunter2")
	require.NoError(t, err)

	sign := func(claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}
	expired := sign(jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	wrongAudience := sign(jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{"someone-else"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{name: "Happy Path", authHeader: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "Missing Header", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Format", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{name: "Malformed Token", authHeader: "Bearer malformed.token.here", expectedStatus: http.StatusForbidden},
		{name: "Expired Token", authHeader: "Bearer " + expired, expectedStatus: http.StatusForbidden},
		{name: "Wrong Audience", authHeader: "Bearer " + wrongAudience, expectedStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestContextMiddlewareCarriesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "req-42")
		return c.Next()
	}, ContextMiddleware(), StructuredLogger(), TracingMiddleware())

	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = observability.ExtractRequestID(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Equal(t, "req-42", seen)
}
