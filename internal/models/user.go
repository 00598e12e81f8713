package models

type User struct {
	BaseModel
	Email     string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string   `json:"name" gorm:"type:varchar(255);not null"`
	AvatarURL *string  `json:"avatarURL,omitempty" gorm:"type:text"`
	Roles     []Role   `json:"roles,omitempty" gorm:"many2many:user_roles"`
	Folders   []Folder `json:"-" gorm:"foreignKey:OwnerID"`
	Files     []File   `json:"-" gorm:"foreignKey:OwnerID"`
	Shares    []Share  `json:"-" gorm:"foreignKey:CreatedByID"`
}

// RoleNames flattens the assigned roles for token claims and authorization.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
