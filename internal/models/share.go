package models

import (
	"time"

	"github.com/google/uuid"
)

// Share grants anonymous, capability-scoped access to one file or folder.
// Exactly one of FileID/FolderID is set; the database carries a CHECK
// constraint mirroring the services.ResourceRef invariant.
type Share struct {
	BaseModel
	FileID      *uuid.UUID `json:"fileID,omitempty" gorm:"type:uuid;index"`
	FolderID    *uuid.UUID `json:"folderID,omitempty" gorm:"type:uuid;index"`
	CreatedByID uuid.UUID  `json:"createdByID" gorm:"type:uuid;not null;index"`
	// Token is the public identifier handed to share recipients. Unguessable
	// and distinct from the primary key.
	Token         string     `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	PasswordHash  *string    `json:"-" gorm:"type:text"`
	AllowDownload bool       `json:"allowDownload" gorm:"not null;default:true"`
	AllowPreview  bool       `json:"allowPreview" gorm:"not null;default:true"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty"`

	File      *File   `json:"-" gorm:"foreignKey:FileID;references:ID"`
	Folder    *Folder `json:"-" gorm:"foreignKey:FolderID;references:ID"`
	CreatedBy User    `json:"-" gorm:"foreignKey:CreatedByID;references:ID"`
}

func (Share) TableName() string {
	return "shares"
}

// IsLive reports whether the share still resolves: never revoked and either
// unexpired or without expiry.
func (s *Share) IsLive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
