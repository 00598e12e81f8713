package models

import "github.com/google/uuid"

type Folder struct {
	BaseModel
	Name     string     `json:"name" gorm:"type:varchar(255);not null"`
	OwnerID  uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`
	ParentID *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`

	Owner    User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Parent   *Folder  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Folder `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	Files    []File   `json:"-" gorm:"foreignKey:FolderID"`
}
