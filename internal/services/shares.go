package services

import (
	"context"
	"errors"
	"time"

	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrShareNotFound covers unknown, revoked, and expired tokens alike;
	// callers must not distinguish them in responses.
	ErrShareNotFound         = errors.New("share not found")
	ErrSharePasswordRequired = errors.New("password required")
	ErrShareInvalidPassword  = errors.New("invalid password")
	ErrShareForbidden        = errors.New("forbidden")
	ErrResourceNotFound      = errors.New("resource not found")
)

type ShareService struct {
	DB *gorm.DB
}

func NewShareService(db *gorm.DB) *ShareService {
	return &ShareService{DB: db}
}

type CreateShareInput struct {
	Resource      ResourceRef
	ExpiresAt     *time.Time
	AllowDownload bool
	AllowPreview  bool
	Password      *string
}

// Create requires only that the target resource exists; the caller gates
// the share action through the Authorizer. The plaintext password never
// touches the database.
func (s *ShareService) Create(ctx context.Context, creatorID uuid.UUID, in CreateShareInput) (*models.Share, error) {
	if !s.resourceExists(ctx, in.Resource) {
		return nil, ErrResourceNotFound
	}

	token, err := utils.GenerateShareToken()
	if err != nil {
		return nil, err
	}

	share := models.Share{
		CreatedByID:   creatorID,
		Token:         token,
		ExpiresAt:     in.ExpiresAt,
		AllowDownload: in.AllowDownload,
		AllowPreview:  in.AllowPreview,
	}

	switch in.Resource.Kind {
	case ResourceFile:
		id := in.Resource.ID
		share.FileID = &id
	case ResourceFolder:
		id := in.Resource.ID
		share.FolderID = &id
	}

	if in.Password != nil && *in.Password != "" {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		share.PasswordHash = &hash
	}

	if err := s.DB.WithContext(ctx).Create(&share).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(creatorID.String(), "share_created", map[string]interface{}{
		"share_id":      share.ID.String(),
		"resource_kind": string(in.Resource.Kind),
		"resource_id":   in.Resource.ID.String(),
		"protected":     share.PasswordHash != nil,
		"expires_at":    in.ExpiresAt,
	})

	return &share, nil
}

// ResolvedShare is the public-safe projection returned to anonymous
// holders of a token. No storage key, no owner identity.
type ResolvedShare struct {
	ResourceKind  ResourceKind `json:"resourceKind"`
	Name          string       `json:"name"`
	MimeType      string       `json:"mimeType,omitempty"`
	Size          int64        `json:"size,omitempty"`
	AllowDownload bool         `json:"allowDownload"`
	AllowPreview  bool         `json:"allowPreview"`
}

func (s *ShareService) Resolve(ctx context.Context, token string, password string) (*ResolvedShare, error) {
	var share models.Share
	if err := s.DB.WithContext(ctx).First(&share, "token = ?", token).Error; err != nil {
		return nil, ErrShareNotFound
	}

	if !share.IsLive(time.Now()) {
		return nil, ErrShareNotFound
	}

	if share.PasswordHash != nil {
		if password == "" {
			return nil, ErrSharePasswordRequired
		}
		if !utils.CheckPassword(*share.PasswordHash, password) {
			return nil, ErrShareInvalidPassword
		}
	}

	resolved := &ResolvedShare{
		AllowDownload: share.AllowDownload,
		AllowPreview:  share.AllowPreview,
	}

	switch {
	case share.FileID != nil:
		var file models.File
		if err := s.DB.WithContext(ctx).First(&file, "id = ?", *share.FileID).Error; err != nil {
			return nil, ErrShareNotFound
		}
		resolved.ResourceKind = ResourceFile
		resolved.Name = file.Name
		resolved.MimeType = file.MimeType
		resolved.Size = file.Size
	case share.FolderID != nil:
		var folder models.Folder
		if err := s.DB.WithContext(ctx).First(&folder, "id = ?", *share.FolderID).Error; err != nil {
			return nil, ErrShareNotFound
		}
		resolved.ResourceKind = ResourceFolder
		resolved.Name = folder.Name
	default:
		return nil, ErrShareNotFound
	}

	return resolved, nil
}

// Revoke sets revokedAt. Idempotent: revoking twice is not an error.
// Allowed for the creator or an admin.
func (s *ShareService) Revoke(ctx context.Context, revoker *Identity, shareID uuid.UUID) error {
	var share models.Share
	if err := s.DB.WithContext(ctx).First(&share, "id = ?", shareID).Error; err != nil {
		return ErrShareNotFound
	}

	if share.CreatedByID != revoker.ID && !revoker.HasRole(models.RoleAdmin) {
		return ErrShareForbidden
	}

	if share.RevokedAt != nil {
		return nil
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(&share).Update("revoked_at", now).Error; err != nil {
		return err
	}

	logger.InfoWithUser(revoker.ID.String(), "share_revoked", map[string]interface{}{
		"share_id": share.ID.String(),
	})

	return nil
}

func (s *ShareService) resourceExists(ctx context.Context, ref ResourceRef) bool {
	var count int64
	switch ref.Kind {
	case ResourceFile:
		s.DB.WithContext(ctx).Model(&models.File{}).Where("id = ?", ref.ID).Count(&count)
	case ResourceFolder:
		s.DB.WithContext(ctx).Model(&models.Folder{}).Where("id = ?", ref.ID).Count(&count)
	}
	return count > 0
}
