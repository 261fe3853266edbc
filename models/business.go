package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Timezone    string `json:"timezone"`
}

func (obj Business) GetBusinessId() string {
	return obj.ID.String()
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, errors.New("invalid phone number")
		}
	}

	timezone := input.Timezone
	if timezone == "" {
		timezone = "Asia/Kolkata"
	}

	business := Business{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Timezone:    timezone,
		IsActive:    utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	db := config.GetDB()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &business, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}
