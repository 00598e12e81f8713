package database

import (
	"fmt"

	"github.com/drivehub/backend/internal/config"
	"github.com/drivehub/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	if err := SeedRoles(db); err != nil {
		return nil, err
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Folder{},
		&models.File{},
		&models.Share{},
	); err != nil {
		return err
	}

	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'share_target_check'
  ) THEN
    ALTER TABLE shares
    ADD CONSTRAINT share_target_check
    CHECK (
      (file_id IS NOT NULL AND folder_id IS NULL)
      OR
      (file_id IS NULL AND folder_id IS NOT NULL)
    );
  END IF;
END $$;`

	return db.Exec(constraint).Error
}

// SeedRoles upserts the fixed role catalog. Idempotent; safe to run on
// every boot.
func SeedRoles(db *gorm.DB) error {
	roles := []models.Role{
		{Name: models.RoleAdmin, Description: "Full access"},
		{Name: models.RoleManager, Description: "Manage shares and folders"},
		{Name: models.RoleMember, Description: "Standard user"},
		{Name: models.RoleViewer, Description: "Read-only"},
	}

	for _, role := range roles {
		var existing models.Role
		err := db.Where("name = ?", role.Name).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&role).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if existing.Description != role.Description {
			existing.Description = role.Description
			if err := db.Save(&existing).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
