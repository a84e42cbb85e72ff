package main

import (
	"log"

	"github.com/pushp314/shiplog-backend/internal/config"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/internal/seeds"
)

func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("Running migrations (just in case)...")
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.GenerationRecord{},
		&models.ChangelogDocument{},
		&models.ChangelogSection{},
		&models.ChangelogChange{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	admin, err := seeds.GetOrCreateAdminUser()
	if err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	if err := seeds.SeedChangelog(admin.ID); err != nil {
		log.Fatalf("Failed to seed changelog: %v", err)
	}

	log.Println("Seeding complete")
}
