package seeds

import (
	"log"

	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/utils"
	"golang.org/x/crypto/bcrypt"
)

// GetOrCreateAdminUser returns the seeding admin, creating one if the
// database has none.
func GetOrCreateAdminUser() (models.User, error) {
	log.Println("Checking admin user...")

	var user models.User
	if err := database.DB.Where("role = ?", models.RoleAdmin).First(&user).Error; err == nil {
		log.Printf("  Admin found: %s", user.Username)
		return user, nil
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("ChangeMeOnFirstLogin!"), bcrypt.DefaultCost)

	user = models.User{
		ID:       utils.GenerateID(),
		Username: "shiplog",
		Email:    "team@shiplog.dev",
		Name:     "Shiplog Team",
		Password: string(hash),
		Role:     models.RoleAdmin,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		return models.User{}, err
	}

	log.Printf("  Admin created: %s", user.Username)
	return user, nil
}
