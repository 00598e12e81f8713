package middleware

import (
	"strings"

	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const identityKey = "identity"

func CORS(origins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// RequireAuth validates the bearer session token and stores the verified
// identity. The token is the identity source: no store round trip here.
func RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "missing authorization header")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	claims, err := utils.ValidateSessionToken(tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	identity := &services.Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Roles: claims.Roles,
	}

	c.Locals(identityKey, identity)
	c.Locals("userID", identity.ID.String())
	return c.Next()
}

// RequireRole gates a route on a role at least as privileged as `role`
// under the given hierarchy. Must run after RequireAuth.
func RequireRole(hierarchy services.Hierarchy, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil {
			return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
		}
		for _, have := range identity.Roles {
			if hierarchy.AtLeast(have, role) {
				return c.Next()
			}
		}
		logger.WarnWithUser(identity.ID.String(), "role_denied", map[string]interface{}{
			"path":          c.Path(),
			"required_role": role,
		})
		return utils.Error(c, fiber.StatusForbidden, "insufficient role")
	}
}

func GetIdentity(c *fiber.Ctx) *services.Identity {
	value := c.Locals(identityKey)
	if value == nil {
		return nil
	}
	identity, ok := value.(*services.Identity)
	if !ok {
		return nil
	}
	return identity
}
