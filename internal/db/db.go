package db

import (
	"errors"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"zheer/internal/models"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=zheer port=5432 sslmode=disable"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	if err := Seed(DB); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
}

// Migrate creates or updates the schema.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Follow{},
		&models.Post{},
	)
}

// Seed upserts the fixed roles and backfills missing self-follow edges. Safe
// to run on every boot.
func Seed(gdb *gorm.DB) error {
	if err := seedRoles(gdb); err != nil {
		return err
	}
	return backfillSelfFollows(gdb)
}

func seedRoles(gdb *gorm.DB) error {
	roles := []models.Role{
		{
			Name:        "User",
			Permissions: models.PermissionFollow | models.PermissionComment | models.PermissionPostArticles,
			IsDefault:   true,
		},
		{
			Name:        "Moderator",
			Permissions: models.PermissionFollow | models.PermissionComment | models.PermissionPostArticles | models.PermissionModerateComments,
		},
		{
			Name:        "Administrator",
			Permissions: 0xff,
		},
	}

	for _, role := range roles {
		var existing models.Role
		err := gdb.Where("name = ?", role.Name).First(&existing).Error
		if err == nil {
			existing.Permissions = role.Permissions
			existing.IsDefault = role.IsDefault
			if err := gdb.Save(&existing).Error; err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := gdb.Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// backfillSelfFollows creates the mandatory self-edge for any account that
// predates the invariant.
func backfillSelfFollows(gdb *gorm.DB) error {
	var ids []uint
	err := gdb.Model(&models.User{}).
		Where("id NOT IN (?)",
			gdb.Model(&models.Follow{}).Select("follower_id").Where("follower_id = followed_id")).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := gdb.Create(&models.Follow{FollowerID: id, FollowedID: id}).Error; err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		log.Printf("Backfilled self-follow edges for %d users", len(ids))
	}
	return nil
}
