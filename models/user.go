package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Username     string    `gorm:"size:100;not null;uniqueIndex" json:"username" binding:"required"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	DisplayName  string    `gorm:"size:100;not null" json:"display_name"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	IsAdmin     bool   `json:"is_admin"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return nil, validationError("username and password are required")
	}
	if len(input.Password) < 8 {
		return nil, validationError("password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(input.DisplayName),
		IsAdmin:      input.IsAdmin,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, validationError("username is already taken")
		}
		return nil, err
	}
	return &user, nil
}

// Login verifies credentials and returns a signed session token.
func Login(ctx context.Context, username string, password string) (string, *User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, utils.ErrorRecordNotFound
		}
		return "", nil, err
	}

	if err := utils.ComparePassword(user.PasswordHash, password); err != nil {
		return "", nil, utils.ErrorRecordNotFound
	}

	token, err := utils.JwtGenerate(user.ID, user.DisplayName, user.Username, user.IsAdmin)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}
