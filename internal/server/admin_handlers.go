package server

import (
	"errors"
	"strings"

	"unscored/internal/middleware"
	"unscored/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminLogin exchanges the admin credentials for a bearer token.
func (s *Server) AdminLogin(c *fiber.Ctx) error {
	token, err := s.auth.Login(c.FormValue("username"), c.FormValue("password"))
	if errors.Is(err, middleware.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{Error: "Invalid credentials"})
	}
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"status": true, "token": token})
}

// GetRemovalRequests lists open removal requests.
func (s *Server) GetRemovalRequests(c *fiber.Ctx) error {
	requests, err := s.archive.FetchRemovalRequests(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// LegalRemoveItem hides a reported item permanently.
func (s *Server) LegalRemoveItem(c *fiber.Ctx) error {
	return s.decideItem(c, true)
}

// LegalApproveItem keeps a reported item visible.
func (s *Server) LegalApproveItem(c *fiber.Ctx) error {
	return s.decideItem(c, false)
}

func (s *Server) decideItem(c *fiber.Ctx, remove bool) error {
	kind := c.FormValue("type", "post")
	id := parseUint(c.FormValue("id"))
	if !validKind(kind) || id < 1 {
		return badRequest("Invalid content type or id")
	}
	var err error
	if remove {
		err = s.archive.RemoveItem(c.UserContext(), kind, id)
	} else {
		err = s.archive.ApproveItem(c.UserContext(), kind, id)
	}
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"status": true})
}

// GetIPBlocks returns the blocked addresses, one per line.
func (s *Server) GetIPBlocks(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(strings.Join(s.blocks.List(), "\n"))
}

// BlockIP blocks the address in the ip form field.
func (s *Server) BlockIP(c *fiber.Ctx) error {
	ip := strings.TrimSpace(c.FormValue("ip"))
	if ip == "" {
		return badRequest("Missing ip")
	}
	if err := s.blocks.Block(c.UserContext(), ip); err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"status": true})
}

// UnblockIP lifts the block on the address in the ip form field.
func (s *Server) UnblockIP(c *fiber.Ctx) error {
	removed, err := s.blocks.Unblock(c.UserContext(), c.FormValue("ip"))
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"status": removed})
}
