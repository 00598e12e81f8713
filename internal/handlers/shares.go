package handlers

import (
	"time"

	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SharesHandler struct {
	DB     *gorm.DB
	Authz  *services.Authorizer
	Shares *services.ShareService
}

func NewSharesHandler(db *gorm.DB, authz *services.Authorizer, shares *services.ShareService) *SharesHandler {
	return &SharesHandler{DB: db, Authz: authz, Shares: shares}
}

type createShareRequest struct {
	ResourceType  string     `json:"resourceType"`
	ResourceID    string     `json:"resourceId"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	AllowDownload *bool      `json:"allowDownload"`
	AllowPreview  *bool      `json:"allowPreview"`
	Password      *string    `json:"password"`
}

func (h *SharesHandler) Create(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	kind, ok := parseResourceKind(req.ResourceType)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "resourceType must be file or folder")
	}

	resourceID, err := parseUUID(req.ResourceID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid resourceId")
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return utils.Error(c, fiber.StatusBadRequest, "expiresAt must be in the future")
	}

	ref := services.ResourceRef{Kind: kind, ID: resourceID}
	if d := h.Authz.Authorize(c.Context(), identity, ref, services.ActionShare); !d.Allowed {
		return denyResponse(c, d)
	}

	// Capabilities default to granted when omitted.
	allowDownload := true
	if req.AllowDownload != nil {
		allowDownload = *req.AllowDownload
	}
	allowPreview := true
	if req.AllowPreview != nil {
		allowPreview = *req.AllowPreview
	}

	share, err := h.Shares.Create(c.Context(), identity.ID, services.CreateShareInput{
		Resource:      ref,
		ExpiresAt:     req.ExpiresAt,
		AllowDownload: allowDownload,
		AllowPreview:  allowPreview,
		Password:      req.Password,
	})
	if err == services.ErrResourceNotFound {
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating share")
	}

	return utils.Success(c, fiber.StatusCreated, share)
}

type resolveShareRequest struct {
	Password string `json:"password"`
}

// Resolve is the one anonymous endpoint: the token is the credential.
func (h *SharesHandler) Resolve(c *fiber.Ctx) error {
	token := c.Params("token")

	var req resolveShareRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	resolved, err := h.Shares.Resolve(c.Context(), token, req.Password)
	switch err {
	case nil:
	case services.ErrSharePasswordRequired:
		return utils.Error(c, fiber.StatusUnauthorized, "password_required")
	case services.ErrShareInvalidPassword:
		return utils.Error(c, fiber.StatusUnauthorized, "invalid_password")
	default:
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}

	return utils.Success(c, fiber.StatusOK, resolved)
}

func (h *SharesHandler) Revoke(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	shareID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid share id")
	}

	switch err := h.Shares.Revoke(c.Context(), identity, shareID); err {
	case nil:
		return utils.Success(c, fiber.StatusOK, fiber.Map{"revoked": true})
	case services.ErrShareNotFound:
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	case services.ErrShareForbidden:
		return utils.Error(c, fiber.StatusForbidden, string(services.DenyForbidden))
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed revoking share")
	}
}
