// Package main provides admin management utilities for Peloton.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"peloton/internal/config"
	"peloton/internal/database"
	"peloton/internal/models"

	"gorm.io/gorm"
)

// AdminSetup provides a utility to manage admin accounts and suspensions.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin/main.go promote <user_id>      - Promote rider to admin")
		fmt.Println("  go run ./cmd/admin/main.go demote <user_id>       - Demote rider from admin")
		fmt.Println("  go run ./cmd/admin/main.go ban <user_id>          - Suspend a rider's account")
		fmt.Println("  go run ./cmd/admin/main.go unban <user_id>        - Lift a suspension")
		fmt.Println("  go run ./cmd/admin/main.go list-admins            - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	command := os.Args[1]

	switch command {
	case "promote":
		requireArg(command)
		setAdminFlag(db, os.Args[2], true)

	case "demote":
		requireArg(command)
		setAdminFlag(db, os.Args[2], false)

	case "ban":
		requireArg(command)
		setBanFlag(db, os.Args[2], true)

	case "unban":
		requireArg(command)
		setBanFlag(db, os.Args[2], false)

	case "list-admins":
		listAdmins(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func requireArg(command string) {
	if len(os.Args) < 3 {
		fmt.Printf("Usage: go run ./cmd/admin/main.go %s <user_id>\n", command)
		os.Exit(1)
	}
}

func loadUser(db *gorm.DB, userID string) *models.User {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}
	return &user
}

func setAdminFlag(db *gorm.DB, userID string, admin bool) {
	user := loadUser(db, userID)

	if user.IsAdmin == admin {
		if admin {
			fmt.Printf("User %s (ID: %d) is already an admin\n", user.Username, user.ID)
		} else {
			fmt.Printf("User %s (ID: %d) is not an admin\n", user.Username, user.ID)
		}
		return
	}

	user.IsAdmin = admin
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	if admin {
		fmt.Printf("✅ Successfully promoted %s (ID: %d) to admin\n", user.Username, user.ID)
	} else {
		fmt.Printf("✅ Successfully demoted %s (ID: %d) from admin\n", user.Username, user.ID)
	}
}

func setBanFlag(db *gorm.DB, userID string, banned bool) {
	user := loadUser(db, userID)

	if user.IsBanned == banned {
		if banned {
			fmt.Printf("User %s (ID: %d) is already banned\n", user.Username, user.ID)
		} else {
			fmt.Printf("User %s (ID: %d) is not banned\n", user.Username, user.ID)
		}
		return
	}

	user.IsBanned = banned
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	if banned {
		fmt.Printf("✅ Suspended %s (ID: %d)\n", user.Username, user.ID)
	} else {
		fmt.Printf("✅ Lifted suspension for %s (ID: %d)\n", user.Username, user.ID)
	}
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Printf("Found %d admin(s):\n", len(admins))
	for _, admin := range admins {
		fmt.Printf("  - %s (ID: %d, email: %s)\n", admin.Username, admin.ID, admin.Email)
	}
}
