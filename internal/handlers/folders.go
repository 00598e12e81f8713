package handlers

import (
	"strings"

	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FoldersHandler struct {
	DB    *gorm.DB
	Authz *services.Authorizer
}

func NewFoldersHandler(db *gorm.DB, authz *services.Authorizer) *FoldersHandler {
	return &FoldersHandler{DB: db, Authz: authz}
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	var parentID *uuid.UUID
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		parsed, err := parseUUID(*req.ParentID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parentId")
		}
		if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(parsed), services.ActionWrite); !d.Allowed {
			return denyResponse(c, d)
		}
		parentID = &parsed
	}

	folder := models.Folder{
		Name:     name,
		OwnerID:  identity.ID,
		ParentID: parentID,
	}

	if err := h.DB.Create(&folder).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating folder")
	}

	logger.InfoWithUser(identity.ID.String(), "folder_created", map[string]interface{}{
		"folder_id":   folder.ID.String(),
		"folder_name": name,
		"request_id":  getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

// Children lists a folder's direct subfolders and files. Soft-deleted rows
// never appear.
func (h *FoldersHandler) Children(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(folderID), services.ActionRead); !d.Allowed {
		return denyResponse(c, d)
	}

	var folders []models.Folder
	if err := h.DB.Where("parent_id = ?", folderID).Order("name ASC").Find(&folders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folders")
	}

	var files []models.File
	if err := h.DB.Where("folder_id = ?", folderID).Order("name ASC").Find(&files).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"folders": folders,
		"files":   files,
	})
}

type updateFolderRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentId"`
}

func (h *FoldersHandler) Update(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req updateFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil && req.ParentID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "nothing to update")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(folderID), services.ActionWrite); !d.Allowed {
		return denyResponse(c, d)
	}

	updates := map[string]interface{}{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name must not be empty")
		}
		updates["name"] = name
	}

	if req.ParentID != nil {
		targetID, err := parseUUID(*req.ParentID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parentId")
		}
		if targetID == folderID {
			return utils.Error(c, fiber.StatusBadRequest, "folder cannot be its own parent")
		}
		if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(folderID), services.ActionMove); !d.Allowed {
			return denyResponse(c, d)
		}
		if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(targetID), services.ActionWrite); !d.Allowed {
			return denyResponse(c, d)
		}
		updates["parent_id"] = targetID
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ?", folderID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}

	if err := h.DB.Model(&folder).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating folder")
	}

	return utils.Success(c, fiber.StatusOK, folder)
}

// Delete soft-deletes the folder row only. Children keep their rows; the
// reconciliation worker owns cascading cleanup.
func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(folderID), services.ActionDelete); !d.Allowed {
		return denyResponse(c, d)
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ?", folderID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}

	if err := h.DB.Delete(&folder).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting folder")
	}

	logger.InfoWithUser(identity.ID.String(), "folder_deleted", map[string]interface{}{
		"folder_id":   folder.ID.String(),
		"folder_name": folder.Name,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
