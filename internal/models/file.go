package models

import "github.com/google/uuid"

type File struct {
	BaseModel
	Name     string    `json:"name" gorm:"type:varchar(255);not null"`
	FolderID uuid.UUID `json:"folderID" gorm:"type:uuid;not null;index"`
	OwnerID  uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`
	Size     int64     `json:"size" gorm:"not null;default:0"`
	MimeType string    `json:"mimeType" gorm:"type:varchar(255);not null"`
	Checksum string    `json:"checksum" gorm:"type:varchar(128);not null;default:''"`
	// StorageKey locates the blob in the object store. Globally unique and
	// never rewritten after CompleteUpload creates the row.
	StorageKey string `json:"-" gorm:"type:text;uniqueIndex;not null"`

	Folder Folder `json:"folder,omitempty" gorm:"foreignKey:FolderID;references:ID"`
	Owner  User   `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}
