package handlers

import (
	"time"

	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FilesHandler struct {
	DB      *gorm.DB
	Authz   *services.Authorizer
	Presign *services.PresignService
}

func NewFilesHandler(db *gorm.DB, authz *services.Authorizer, presign *services.PresignService) *FilesHandler {
	return &FilesHandler{DB: db, Authz: authz, Presign: presign}
}

type presignUploadRequest struct {
	FolderID string `json:"folderId"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Checksum string `json:"checksum"`
}

func (h *FilesHandler) PresignUpload(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req presignUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	folderID, err := parseUUID(req.FolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folderId")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(folderID), services.ActionWrite); !d.Allowed {
		return denyResponse(c, d)
	}

	presigned, err := h.Presign.PresignUpload(c.Context(), identity.ID, services.UploadRequest{
		FolderID: folderID,
		Name:     req.Name,
		Size:     req.Size,
		MimeType: req.MimeType,
		Checksum: req.Checksum,
	})
	if err == services.ErrInvalidUpload {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload request")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed presigning upload")
	}

	return utils.Success(c, fiber.StatusOK, presigned)
}

type completeUploadRequest struct {
	FolderID   string `json:"folderId"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mimeType"`
	Checksum   string `json:"checksum"`
	StorageKey string `json:"storageKey"`
}

func (h *FilesHandler) CompleteUpload(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req completeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	folderID, err := parseUUID(req.FolderID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folderId")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(folderID), services.ActionWrite); !d.Allowed {
		return denyResponse(c, d)
	}

	file, err := h.Presign.CompleteUpload(c.Context(), identity.ID, services.CompleteUploadInput{
		FolderID:   folderID,
		Name:       req.Name,
		Size:       req.Size,
		MimeType:   req.MimeType,
		Checksum:   req.Checksum,
		StorageKey: req.StorageKey,
	})
	if err == services.ErrInvalidUpload {
		return utils.Error(c, fiber.StatusBadRequest, "invalid upload request")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	return utils.Success(c, fiber.StatusCreated, file)
}

func (h *FilesHandler) PresignDownload(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FileRef(fileID), services.ActionRead); !d.Allowed {
		return denyResponse(c, d)
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}

	presigned, err := h.Presign.PresignDownload(c.Context(), &file)
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed presigning download")
	}

	return utils.Success(c, fiber.StatusOK, presigned)
}

type updateFileRequest struct {
	Name     *string `json:"name"`
	FolderID *string `json:"folderId"`
}

// Update renames and/or moves a file. Rename needs write; move
// additionally needs move on the file and write on the target folder.
func (h *FilesHandler) Update(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req updateFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil && req.FolderID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "nothing to update")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FileRef(fileID), services.ActionWrite); !d.Allowed {
		return denyResponse(c, d)
	}

	updates := map[string]interface{}{}

	if req.Name != nil {
		if *req.Name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name must not be empty")
		}
		updates["name"] = *req.Name
	}

	if req.FolderID != nil {
		targetID, err := parseUUID(*req.FolderID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folderId")
		}
		if d := h.Authz.Authorize(c.Context(), identity, services.FileRef(fileID), services.ActionMove); !d.Allowed {
			return denyResponse(c, d)
		}
		if d := h.Authz.Authorize(c.Context(), identity, services.FolderRef(targetID), services.ActionWrite); !d.Allowed {
			return denyResponse(c, d)
		}
		updates["folder_id"] = targetID
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}

	if err := h.DB.Model(&file).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating file")
	}

	logger.InfoWithUser(identity.ID.String(), "file_updated", map[string]interface{}{
		"file_id":    file.ID.String(),
		"request_id": getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	if d := h.Authz.Authorize(c.Context(), identity, services.FileRef(fileID), services.ActionDelete); !d.Allowed {
		return denyResponse(c, d)
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, string(services.DenyNotFound))
	}

	// Soft delete: the row keeps its storage key so the cleanup worker can
	// reap the blob later.
	if err := h.DB.Delete(&file).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}

	logger.InfoWithUser(identity.ID.String(), "file_deleted", map[string]interface{}{
		"file_id":    file.ID.String(),
		"file_name":  file.Name,
		"deleted_at": time.Now().UTC(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
