package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// parseUUIDs parses a list of ids, dropping repeats so "A" and "a" count once.
func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		id, err := parseUUID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return distinctUUIDs(ids), nil
}

func distinctUUIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func getRequestID(c *fiber.Ctx) string {
	return middleware.RequestID(c)
}

// respondError writes a booking error to the envelope. Persistence failures
// are logged with their cause and reported without it.
func respondError(c *fiber.Ctx, err error) error {
	status := booking.HTTPStatus(err)

	var be *booking.Error
	if !errors.As(err, &be) {
		logger.Error("unhandled_error", err, map[string]interface{}{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": getRequestID(c),
		})
		return utils.Error(c, status, booking.PublicMessage(err))
	}

	if be.Kind == booking.KindPersistence {
		logger.Error("persistence_error", err, map[string]interface{}{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": getRequestID(c),
		})
	}
	return utils.ErrorWithCode(c, status, string(be.Code), be.Field, booking.PublicMessage(err))
}
