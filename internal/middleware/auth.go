package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"unscored/internal/config"
	"unscored/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "unscored"
	tokenAudience = "unscored-admin"
	tokenTTL      = 365 * 24 * time.Hour
)

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminAuth issues and checks the bearer tokens of the single admin account.
type AdminAuth struct {
	username     string
	passwordHash []byte
	secret       []byte
	now          func() time.Time
}

// NewAdminAuth reads the admin account from cfg. Login always fails when no
// username or password hash is configured.
func NewAdminAuth(cfg *config.Config) *AdminAuth {
	return &AdminAuth{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
		secret:       []byte(cfg.JWTSecret),
		now:          time.Now,
	}
}

// Login checks the credentials and returns a signed admin token.
func (a *AdminAuth) Login(username, password string) (string, error) {
	if a.username == "" || len(a.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) != 1 {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses tokenString and returns the admin name it was issued to.
func (a *AdminAuth) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return a.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	if claims.Subject != a.username {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// AdminRequired rejects requests without a valid admin bearer token.
func (a *AdminAuth) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Authorization header required",
			})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Invalid authorization header format",
			})
		}

		admin, err := a.Verify(parts[1])
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{
				Error: "Admin access required",
			})
		}

		c.Locals("admin", admin)
		return c.Next()
	}
}
