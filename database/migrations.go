package database

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"brightfold/models"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.BlogPost{},
		&models.BlogComment{},
		&models.GenerationJob{},
		&models.NewsletterSubscriber{},
		&models.AdminUser{},
		&models.CaseStudy{},
	)

	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedAdminUser creates the first admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. Does nothing when the account already exists or the
// variables are unset, so restarts are safe.
func SeedAdminUser(db *gorm.DB) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int64
	db.Model(&models.AdminUser{}).Where("email = ?", adminEmail).Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 14)
	if err != nil {
		return err
	}

	admin := models.AdminUser{
		Email:        adminEmail,
		PasswordHash: string(hash),
		Role:         "admin",
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin user %s", adminEmail)
	return nil
}
