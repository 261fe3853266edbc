package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

// Shelf is the physical stock-keeping location. It carries the full
// ancestor chain by code; a shelf whose declared parentage disagrees with
// the actual rack/zone/warehouse records is invalid at placement time.
type Shelf struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	Code          string    `gorm:"size:50;not null;index:idx_shelf_code,unique,composite:business_id" json:"code" binding:"required"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	WarehouseCode string    `gorm:"size:50;not null;index" json:"warehouse_code" binding:"required"`
	ZoneCode      string    `gorm:"size:50;not null;index" json:"zone_code" binding:"required"`
	RackCode      string    `gorm:"size:50;not null;index" json:"rack_code" binding:"required"`
	Position      int       `gorm:"default:0" json:"position"`
	Capacity      int       `gorm:"default:0" json:"capacity"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShelf struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	WarehouseCode string `json:"warehouse_code" binding:"required"`
	ZoneCode      string `json:"zone_code" binding:"required"`
	RackCode      string `json:"rack_code" binding:"required"`
	Position      int    `json:"position"`
	Capacity      int    `json:"capacity"`
}

func (obj Shelf) GetBusinessId() string {
	return obj.BusinessId
}

// ValidateShelfPath reports whether the shelf's declared ancestry agrees
// with the actually-resolved rack/zone/warehouse records at every level.
// Pure and total: nil inputs mean the entity was not resolved, which is a
// mismatch by definition.
func ValidateShelfPath(shelf *Shelf, rack *Rack, zone *Zone, warehouse *Warehouse) bool {
	if shelf == nil || rack == nil || zone == nil || warehouse == nil {
		return false
	}
	if shelf.RackCode != rack.Code {
		return false
	}
	if shelf.ZoneCode != zone.Code || rack.ZoneCode != zone.Code {
		return false
	}
	if shelf.WarehouseCode != warehouse.Code ||
		rack.WarehouseCode != warehouse.Code ||
		zone.WarehouseCode != warehouse.Code {
		return false
	}
	return true
}

func (input *NewShelf) validate(ctx context.Context, businessId string, id int) error {
	code := NormalizeLocationCode(input.Code)
	if code == "" {
		return errors.New("shelf code is required")
	}
	if err := utils.ValidateUnique[Shelf](ctx, businessId, "code", code, id); err != nil {
		return err
	}
	rack, err := FindRackByCode(ctx, businessId, input.RackCode)
	if err != nil {
		return err
	}
	if rack == nil {
		return errors.New("rack not found")
	}
	if rack.ZoneCode != NormalizeLocationCode(input.ZoneCode) {
		return errors.New("rack does not belong to the given zone")
	}
	if rack.WarehouseCode != NormalizeLocationCode(input.WarehouseCode) {
		return errors.New("rack does not belong to the given warehouse")
	}
	return nil
}

func CreateShelf(ctx context.Context, input *NewShelf) (*Shelf, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	shelf := Shelf{
		BusinessId:    businessId,
		Code:          NormalizeLocationCode(input.Code),
		Name:          input.Name,
		WarehouseCode: NormalizeLocationCode(input.WarehouseCode),
		ZoneCode:      NormalizeLocationCode(input.ZoneCode),
		RackCode:      NormalizeLocationCode(input.RackCode),
		Position:      input.Position,
		Capacity:      input.Capacity,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shelf).Error; err != nil {
			return err
		}
		if err := bumpWarehouseStats(tx, businessId, shelf.WarehouseCode, "total_shelves", 1); err != nil {
			return err
		}
		return tx.Exec(
			"UPDATE zones SET total_shelves = total_shelves + 1 WHERE business_id = ? AND code = ?",
			businessId, shelf.ZoneCode,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return &shelf, nil
}

func UpdateShelf(ctx context.Context, id int, input *NewShelf) (*Shelf, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	shelf, err := utils.FetchModel[Shelf](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if shelf.Code != NormalizeLocationCode(input.Code) {
		// Placement keys embed the shelf code; renames would strand ledger rows.
		return nil, errors.New("shelf code cannot be changed")
	}
	if shelf.RackCode != NormalizeLocationCode(input.RackCode) ||
		shelf.ZoneCode != NormalizeLocationCode(input.ZoneCode) ||
		shelf.WarehouseCode != NormalizeLocationCode(input.WarehouseCode) {
		return nil, errors.New("shelf location cannot be changed")
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&shelf).Updates(map[string]interface{}{
		"Name":     input.Name,
		"Position": input.Position,
		"Capacity": input.Capacity,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Shelf](id)

	return shelf, nil
}

func DeleteShelf(ctx context.Context, id int) (*Shelf, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Shelf](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var stock int64
	if err := db.WithContext(ctx).Model(&Placement{}).
		Where("business_id = ? AND shelf_code = ? AND quantity > 0", businessId, result.Code).
		Count(&stock).Error; err != nil {
		return nil, err
	}
	if stock > 0 {
		return nil, errors.New("shelf has stock")
	}

	// db action
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Shelf{}, id).Error; err != nil {
			return err
		}
		if err := bumpWarehouseStats(tx, businessId, result.WarehouseCode, "total_shelves", -1); err != nil {
			return err
		}
		return tx.Exec(
			"UPDATE zones SET total_shelves = total_shelves - 1 WHERE business_id = ? AND code = ?",
			businessId, result.ZoneCode,
		).Error
	})
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Shelf](id)
	return result, nil
}

func GetShelf(ctx context.Context, id int) (*Shelf, error) {
	return GetResource[Shelf](ctx, id)
}

func ListShelf(ctx context.Context, rackCode *string) ([]*Shelf, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Shelf

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if rackCode != nil && len(*rackCode) > 0 {
		dbCtx = dbCtx.Where("rack_code = ?", NormalizeLocationCode(*rackCode))
	}
	if err := dbCtx.Order("position, code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindShelfByCode returns (nil, nil) when the code does not exist.
func FindShelfByCode(ctx context.Context, businessId string, code string) (*Shelf, error) {
	db := config.GetDB()
	var shelf Shelf
	err := db.WithContext(ctx).
		Where("business_id = ? AND code = ?", businessId, NormalizeLocationCode(code)).
		First(&shelf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shelf, nil
}
