package utils

import "github.com/gofiber/fiber/v2"

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func Paginated(c *fiber.Ctx, data interface{}, page Page, total int64) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":       page.Number,
			"limit":      page.Limit,
			"total":      total,
			"totalPages": page.TotalPages(total),
		},
	})
}

// ErrorWithCode adds a machine-readable code, and the offending field when
// known, to the error envelope.
func ErrorWithCode(c *fiber.Ctx, status int, code, field, message string) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	}
	if field != "" {
		body["field"] = field
	}
	return c.Status(status).JSON(body)
}
