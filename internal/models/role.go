package models

// Role names form a fixed catalog seeded at startup. The privilege order
// over them lives in services.Hierarchy, not here.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
	RoleViewer  = "viewer"
)

type Role struct {
	BaseModel
	Name        string `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:varchar(255);not null;default:''"`
}
