package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/google/uuid"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:100" json:"email"`
	Password   string    `gorm:"size:255;not null" json:"password"`
	IsActive   *bool     `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	BusinessId string `json:"business_id"`
	Username   string `json:"username" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email"`
	Password   string `json:"password" binding:"required"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		BusinessId: input.BusinessId,
		Username:   strings.ToLower(strings.TrimSpace(input.Username)),
		Name:       input.Name,
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Password:   string(hashed),
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).
		Where("username = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

type LoginInfo struct {
	Token        string `json:"token"`
	Jwt          string `json:"jwt"`
	Name         string `json:"name"`
	BusinessId   string `json:"business_id"`
	BusinessName string `json:"business_name"`
	Timezone     string `json:"timezone"`
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	user, err := VerifyUserCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}

	result := LoginInfo{
		Name:       user.Name,
		BusinessId: user.BusinessId,
	}
	if user.BusinessId != "" {
		business, err := GetBusinessById(ctx, user.BusinessId)
		if err != nil {
			return nil, err
		}
		result.BusinessName = business.Name
		result.Timezone = business.Timezone
	}

	// store token in redis
	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || tokenLifespan <= 0 {
		tokenLifespan = 24
	}
	token := uuid.NewString()
	if err := config.SetRedisValue("Token:"+token, user.Username,
		time.Duration(tokenLifespan)*time.Hour); err != nil {
		return nil, err
	}
	result.Token = token

	// signed token for service callers
	signed, err := utils.JwtGenerate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	result.Jwt = signed

	return &result, nil
}

func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, nil
	}
	return true, nil
}

// VerifyUserCredentials checks username/password for login.
func VerifyUserCredentials(ctx context.Context, username string, password string) (*User, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.New("invalid username or password")
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is inactive")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errors.New("invalid username or password")
	}
	return user, nil
}
