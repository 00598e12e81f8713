package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/drivehub/backend/internal/models"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ObjectStore issues time-limited capability URLs. Bytes never flow
// through this service.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var ErrInvalidUpload = errors.New("invalid upload request")

type PresignService struct {
	DB          *gorm.DB
	Store       ObjectStore
	UploadTTL   time.Duration
	DownloadTTL time.Duration
}

func NewPresignService(db *gorm.DB, store ObjectStore, uploadTTL, downloadTTL time.Duration) *PresignService {
	return &PresignService{DB: db, Store: store, UploadTTL: uploadTTL, DownloadTTL: downloadTTL}
}

type UploadRequest struct {
	FolderID uuid.UUID
	Name     string
	Size     int64
	MimeType string
	Checksum string
}

func (r *UploadRequest) normalize() error {
	r.Name = filepath.Base(strings.TrimSpace(r.Name))
	if r.Name == "" || r.Name == "." || r.Name == "/" {
		return ErrInvalidUpload
	}
	if r.Size <= 0 {
		return ErrInvalidUpload
	}
	if r.MimeType == "" {
		r.MimeType = "application/octet-stream"
	}
	return nil
}

type PresignedUpload struct {
	URL        string `json:"url"`
	StorageKey string `json:"storageKey"`
	ExpiresIn  int64  `json:"expiresIn"`
}

// PresignUpload computes a storage key namespaced by user and folder with a
// random component, then requests a PUT URL. No file row is created here;
// that happens on CompleteUpload, so abandoned uploads leave at worst an
// orphan blob for the external cleanup worker.
func (p *PresignService) PresignUpload(ctx context.Context, userID uuid.UUID, req UploadRequest) (*PresignedUpload, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	nonce, err := utils.RandomHex(8)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s/%s-%s", userID, req.FolderID, nonce, req.Name)

	url, err := p.Store.PresignPut(ctx, key, req.MimeType, p.UploadTTL)
	if err != nil {
		logger.Error("presign_upload_failed", err, map[string]interface{}{
			"storage_key": key,
		})
		return nil, err
	}

	return &PresignedUpload{
		URL:        url,
		StorageKey: key,
		ExpiresIn:  int64(p.UploadTTL.Seconds()),
	}, nil
}

type CompleteUploadInput struct {
	FolderID   uuid.UUID
	Name       string
	Size       int64
	MimeType   string
	Checksum   string
	StorageKey string
}

// CompleteUpload creates the file row after the client confirms the PUT
// finished. The checksum is recorded for out-of-band verification, not
// checked here.
func (p *PresignService) CompleteUpload(ctx context.Context, userID uuid.UUID, in CompleteUploadInput) (*models.File, error) {
	req := UploadRequest{FolderID: in.FolderID, Name: in.Name, Size: in.Size, MimeType: in.MimeType}
	if err := req.normalize(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.StorageKey) == "" {
		return nil, ErrInvalidUpload
	}

	file := models.File{
		Name:       req.Name,
		FolderID:   in.FolderID,
		OwnerID:    userID,
		Size:       req.Size,
		MimeType:   req.MimeType,
		Checksum:   in.Checksum,
		StorageKey: in.StorageKey,
	}

	if err := p.DB.WithContext(ctx).Create(&file).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(userID.String(), "upload_completed", map[string]interface{}{
		"file_id":     file.ID.String(),
		"file_name":   file.Name,
		"file_size":   file.Size,
		"mime_type":   file.MimeType,
		"storage_key": file.StorageKey,
		"folder_id":   file.FolderID.String(),
	})

	return &file, nil
}

type PresignedDownload struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expiresIn"`
}

// PresignDownload assumes the caller already passed the Authorizer's read
// check for this file.
func (p *PresignService) PresignDownload(ctx context.Context, file *models.File) (*PresignedDownload, error) {
	url, err := p.Store.PresignGet(ctx, file.StorageKey, p.DownloadTTL)
	if err != nil {
		logger.Error("presign_download_failed", err, map[string]interface{}{
			"file_id": file.ID.String(),
		})
		return nil, err
	}

	return &PresignedDownload{
		URL:       url,
		ExpiresIn: int64(p.DownloadTTL.Seconds()),
	}, nil
}
