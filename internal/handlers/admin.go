package handlers

import (
	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{DB: db}
}

func (h *AdminHandler) Health(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{"ok": true, "scope": "admin"})
}

// Reindex reports files whose parent folder is soft-deleted. Folder
// deletion does not cascade, so these rows accumulate until the external
// cleanup worker reconciles them.
func (h *AdminHandler) Reindex(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var orphanFiles int64
	err := h.DB.Model(&models.File{}).
		Joins("JOIN folders ON folders.id = files.folder_id").
		Where("folders.deleted_at IS NOT NULL").
		Count(&orphanFiles).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed scanning files")
	}

	var liveShares int64
	if err := h.DB.Model(&models.Share{}).Where("revoked_at IS NULL").Count(&liveShares).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed scanning shares")
	}

	logger.InfoWithUser(identity.ID.String(), "admin_reindex", map[string]interface{}{
		"orphan_files": orphanFiles,
		"live_shares":  liveShares,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"orphanFiles": orphanFiles,
		"liveShares":  liveShares,
	})
}
