// seed-admin creates or resets the initial admin user so a fresh deployment
// can log in. Credentials come from env (SEED_ADMIN_USERNAME /
// SEED_ADMIN_PASSWORD); defaults are for local development only.
//
// Usage (from the repo root):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/models"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "kasmoniAdmin"
	defaultAdminPassword = "ChangeMe-Now1"
	defaultAdminName     = "Kasmoni Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	username := os.Getenv("SEED_ADMIN_USERNAME")
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	switch {
	case err == nil:
		hashed, herr := utils.HashPassword(password)
		if herr != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", herr)
			os.Exit(1)
		}
		existing.PasswordHash = string(hashed)
		existing.IsAdmin = true
		if uerr := db.WithContext(ctx).Save(&existing).Error; uerr != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", uerr)
			os.Exit(1)
		}
		fmt.Printf("admin user %q password reset (id=%d)\n", username, existing.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, cerr := models.CreateUser(ctx, &models.NewUser{
			Username:    username,
			Password:    password,
			DisplayName: defaultAdminName,
			IsAdmin:     true,
		})
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", cerr)
			os.Exit(1)
		}
		fmt.Printf("admin user %q created (id=%d)\n", username, user.ID)
	default:
		fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
		os.Exit(1)
	}
}
