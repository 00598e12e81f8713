package handlers

import (
	"strings"

	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}

// denyResponse maps an authorization decision to the wire. not_found is
// deliberately indistinguishable from a missing resource.
func denyResponse(c *fiber.Ctx, d services.Decision) error {
	switch d.Reason {
	case services.DenyNotFound:
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	default:
		return utils.Error(c, fiber.StatusForbidden, string(services.DenyForbidden))
	}
}

func parseResourceKind(value string) (services.ResourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "file":
		return services.ResourceFile, true
	case "folder":
		return services.ResourceFolder, true
	default:
		return "", false
	}
}
