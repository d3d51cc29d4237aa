package server

import (
	"strconv"
	"unicode/utf8"

	"unscored/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	maxReasonLength      = 128
	maxDescriptionLength = 5000
)

// queryPage reads the 1-based page parameter. Anything below 1 means 1.
func queryPage(c *fiber.Ctx) int {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return 1
	}
	return page
}

// parseUint reads a positive id. Malformed input yields 0.
func parseUint(raw string) uint64 {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func validKind(kind string) bool {
	return kind == service.KindPost || kind == service.KindComment
}

func badRequest(message string) error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}
