package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

// Zone belongs to exactly one warehouse; the parent is referenced by code
// (one-directional forward reference, no back-pointers).
type Zone struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	Code          string    `gorm:"size:50;not null;index:idx_zone_code,unique,composite:business_id" json:"code" binding:"required"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	WarehouseCode string    `gorm:"size:50;not null;index" json:"warehouse_code" binding:"required"`
	TotalRacks    int       `gorm:"default:0" json:"total_racks"`
	TotalShelves  int       `gorm:"default:0" json:"total_shelves"`
	TotalProducts int       `gorm:"default:0" json:"total_products"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewZone struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	WarehouseCode string `json:"warehouse_code" binding:"required"`
}

func (obj Zone) GetBusinessId() string {
	return obj.BusinessId
}

func (input *NewZone) validate(ctx context.Context, businessId string, id int) error {
	code := NormalizeLocationCode(input.Code)
	if code == "" {
		return errors.New("zone code is required")
	}
	if err := utils.ValidateUnique[Zone](ctx, businessId, "code", code, id); err != nil {
		return err
	}
	warehouse, err := FindWarehouseByCode(ctx, businessId, input.WarehouseCode)
	if err != nil {
		return err
	}
	if warehouse == nil {
		return errors.New("warehouse not found")
	}
	return nil
}

func CreateZone(ctx context.Context, input *NewZone) (*Zone, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	zone := Zone{
		BusinessId:    businessId,
		Code:          NormalizeLocationCode(input.Code),
		Name:          input.Name,
		WarehouseCode: NormalizeLocationCode(input.WarehouseCode),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&zone).Error; err != nil {
			return err
		}
		// management flow maintains the parent's denormalized stats
		return bumpWarehouseStats(tx, businessId, zone.WarehouseCode, "total_zones", 1)
	})
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

func UpdateZone(ctx context.Context, id int, input *NewZone) (*Zone, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	zone, err := utils.FetchModel[Zone](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if zone.Code != NormalizeLocationCode(input.Code) {
		return nil, errors.New("zone code cannot be changed")
	}
	if zone.WarehouseCode != NormalizeLocationCode(input.WarehouseCode) {
		// Moving a zone would orphan the racks/shelves that reference it.
		return nil, errors.New("zone warehouse cannot be changed")
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&zone).Update("Name", input.Name).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Zone](id)

	return zone, nil
}

func DeleteZone(ctx context.Context, id int) (*Zone, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Zone](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var racks int64
	if err := db.WithContext(ctx).Model(&Rack{}).
		Where("business_id = ? AND zone_code = ?", businessId, result.Code).
		Count(&racks).Error; err != nil {
		return nil, err
	}
	if racks > 0 {
		return nil, errors.New("zone has racks")
	}
	var stock int64
	if err := db.WithContext(ctx).Model(&Placement{}).
		Where("business_id = ? AND zone_code = ? AND quantity > 0", businessId, result.Code).
		Count(&stock).Error; err != nil {
		return nil, err
	}
	if stock > 0 {
		return nil, errors.New("zone has stock")
	}

	// db action
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Zone{}, id).Error; err != nil {
			return err
		}
		return bumpWarehouseStats(tx, businessId, result.WarehouseCode, "total_zones", -1)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Zone](id)
	return result, nil
}

func GetZone(ctx context.Context, id int) (*Zone, error) {
	return GetResource[Zone](ctx, id)
}

func ListZone(ctx context.Context, warehouseCode *string) ([]*Zone, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Zone

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if warehouseCode != nil && len(*warehouseCode) > 0 {
		dbCtx = dbCtx.Where("warehouse_code = ?", NormalizeLocationCode(*warehouseCode))
	}
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindZoneByCode returns (nil, nil) when the code does not exist.
func FindZoneByCode(ctx context.Context, businessId string, code string) (*Zone, error) {
	db := config.GetDB()
	var zone Zone
	err := db.WithContext(ctx).
		Where("business_id = ? AND code = ?", businessId, NormalizeLocationCode(code)).
		First(&zone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &zone, nil
}
