package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BusinessId      string    `gorm:"index;not null" json:"business_id"`
	Code            string    `gorm:"size:50;not null;index:idx_warehouse_code,unique,composite:business_id" json:"code" binding:"required"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone           string    `gorm:"size:20" json:"phone"`
	Mobile          string    `gorm:"size:20" json:"mobile"`
	Address         string    `gorm:"type:text" json:"address"`
	StorageCapacity int       `gorm:"default:0" json:"storage_capacity"`
	IsDeleted       *bool     `gorm:"not null;default:false" json:"is_deleted"`
	TotalZones      int       `gorm:"default:0" json:"total_zones"`
	TotalRacks      int       `gorm:"default:0" json:"total_racks"`
	TotalShelves    int       `gorm:"default:0" json:"total_shelves"`
	TotalProducts   int       `gorm:"default:0" json:"total_products"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Phone           string `json:"phone"`
	Mobile          string `json:"mobile"`
	Address         string `json:"address"`
	StorageCapacity int    `json:"storage_capacity"`
}

func (obj Warehouse) GetBusinessId() string {
	return obj.BusinessId
}

// NormalizeLocationCode canonicalizes a warehouse/zone/rack/shelf code or SKU
// before any lookup or write. All code comparisons happen on this form.
func NormalizeLocationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validate input for both create & update. (id = 0 for create)
func (input *NewWarehouse) validate(ctx context.Context, businessId string, id int) error {
	code := NormalizeLocationCode(input.Code)
	if code == "" {
		return errors.New("warehouse code is required")
	}
	if err := utils.ValidateUnique[Warehouse](ctx, businessId, "code", code, id); err != nil {
		return err
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	// mobile
	if len(strings.TrimSpace(input.Mobile)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Mobile, utils.CountryCode); err != nil {
			return errors.New("invalid mobile number")
		}
	}
	return nil
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	warehouse := Warehouse{
		BusinessId:      businessId,
		Code:            NormalizeLocationCode(input.Code),
		Name:            input.Name,
		Phone:           input.Phone,
		Mobile:          input.Mobile,
		Address:         input.Address,
		StorageCapacity: input.StorageCapacity,
		IsDeleted:       utils.NewFalse(),
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func UpdateWarehouse(ctx context.Context, id int, input *NewWarehouse) (*Warehouse, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	warehouse, err := utils.FetchModel[Warehouse](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if warehouse.Code != NormalizeLocationCode(input.Code) {
		// Codes are referenced by zones/racks/shelves/placements; renames
		// would orphan the chain.
		return nil, errors.New("warehouse code cannot be changed")
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&warehouse).Updates(map[string]interface{}{
		"Name":            input.Name,
		"Phone":           input.Phone,
		"Mobile":          input.Mobile,
		"Address":         input.Address,
		"StorageCapacity": input.StorageCapacity,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Warehouse](id)

	return warehouse, nil
}

// DeleteWarehouse soft-deletes: placements reference warehouses historically,
// so rows are flagged, never removed.
func DeleteWarehouse(ctx context.Context, id int) (*Warehouse, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Warehouse](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// check if warehouse still holds stock
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Placement{}).
		Where("business_id = ? AND warehouse_code = ? AND quantity > 0", businessId, result.Code).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("warehouse has stock")
	}

	// db action
	err = db.WithContext(ctx).Model(&result).Update("IsDeleted", true).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Warehouse](id)
	return result, nil
}

func GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	return GetResource[Warehouse](ctx, id)
}

func ListWarehouse(ctx context.Context, name *string) ([]*Warehouse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Warehouse

	dbCtx := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("is_deleted = ?", false)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindWarehouseByCode returns (nil, nil) when the code does not exist so
// bulk-import row resolution can classify the row instead of failing.
func FindWarehouseByCode(ctx context.Context, businessId string, code string) (*Warehouse, error) {
	db := config.GetDB()
	var warehouse Warehouse
	err := db.WithContext(ctx).
		Where("business_id = ? AND code = ? AND is_deleted = ?", businessId, NormalizeLocationCode(code), false).
		First(&warehouse).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &warehouse, nil
}

// bumpWarehouseStats applies an atomic delta to one of the denormalized
// stats counters (total_zones, total_racks, total_shelves, total_products).
func bumpWarehouseStats(tx *gorm.DB, businessId string, code string, column string, delta int) error {
	return tx.Exec(
		"UPDATE warehouses SET "+column+" = "+column+" + ? WHERE business_id = ? AND code = ?",
		delta, businessId, code,
	).Error
}
