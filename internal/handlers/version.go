package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/pkg/utils"
)

// Version is the server version, injected at build time:
//
//	go build -ldflags "-X github.com/sitevisit/backend/internal/handlers.Version=1.2.3"
var Version = "dev"

const (
	serviceName = "sitevisit-api"
	apiVersion  = "v1"
)

type versionResponse struct {
	Service    string   `json:"service"`
	Version    string   `json:"version"`
	APIVersion string   `json:"apiVersion"`
	Timezone   string   `json:"timezone"`
	FileFields []string `json:"fileFields"`
}

// versionHandler reports the build together with what a client needs to
// book: the zone dates and times are read in and the accepted file fields.
func versionHandler(loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.UTC
	}
	info := versionResponse{
		Service:    serviceName,
		Version:    Version,
		APIVersion: apiVersion,
		Timezone:   loc.String(),
		FileFields: booking.AllFileFields(),
	}
	return func(c *fiber.Ctx) error {
		return utils.Success(c, fiber.StatusOK, info)
	}
}
