package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

// Rack stores both its zone and warehouse codes. The warehouse code must
// agree with the zone's actual parent (transitive consistency), checked at
// create time and re-checked at placement time via ValidateShelfPath.
type Rack struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	Code          string    `gorm:"size:50;not null;index:idx_rack_code,unique,composite:business_id" json:"code" binding:"required"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	WarehouseCode string    `gorm:"size:50;not null;index" json:"warehouse_code" binding:"required"`
	ZoneCode      string    `gorm:"size:50;not null;index" json:"zone_code" binding:"required"`
	Position      int       `gorm:"default:0" json:"position"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRack struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	WarehouseCode string `json:"warehouse_code" binding:"required"`
	ZoneCode      string `json:"zone_code" binding:"required"`
	Position      int    `json:"position"`
}

func (obj Rack) GetBusinessId() string {
	return obj.BusinessId
}

func (input *NewRack) validate(ctx context.Context, businessId string, id int) error {
	code := NormalizeLocationCode(input.Code)
	if code == "" {
		return errors.New("rack code is required")
	}
	if err := utils.ValidateUnique[Rack](ctx, businessId, "code", code, id); err != nil {
		return err
	}
	zone, err := FindZoneByCode(ctx, businessId, input.ZoneCode)
	if err != nil {
		return err
	}
	if zone == nil {
		return errors.New("zone not found")
	}
	if zone.WarehouseCode != NormalizeLocationCode(input.WarehouseCode) {
		return errors.New("zone does not belong to the given warehouse")
	}
	return nil
}

func CreateRack(ctx context.Context, input *NewRack) (*Rack, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	rack := Rack{
		BusinessId:    businessId,
		Code:          NormalizeLocationCode(input.Code),
		Name:          input.Name,
		WarehouseCode: NormalizeLocationCode(input.WarehouseCode),
		ZoneCode:      NormalizeLocationCode(input.ZoneCode),
		Position:      input.Position,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rack).Error; err != nil {
			return err
		}
		if err := bumpWarehouseStats(tx, businessId, rack.WarehouseCode, "total_racks", 1); err != nil {
			return err
		}
		return tx.Exec(
			"UPDATE zones SET total_racks = total_racks + 1 WHERE business_id = ? AND code = ?",
			businessId, rack.ZoneCode,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return &rack, nil
}

func UpdateRack(ctx context.Context, id int, input *NewRack) (*Rack, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	rack, err := utils.FetchModel[Rack](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if rack.Code != NormalizeLocationCode(input.Code) {
		return nil, errors.New("rack code cannot be changed")
	}
	if rack.ZoneCode != NormalizeLocationCode(input.ZoneCode) ||
		rack.WarehouseCode != NormalizeLocationCode(input.WarehouseCode) {
		return nil, errors.New("rack location cannot be changed")
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&rack).Updates(map[string]interface{}{
		"Name":     input.Name,
		"Position": input.Position,
	}).Error
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Rack](id)

	return rack, nil
}

func DeleteRack(ctx context.Context, id int) (*Rack, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Rack](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var shelves int64
	if err := db.WithContext(ctx).Model(&Shelf{}).
		Where("business_id = ? AND rack_code = ?", businessId, result.Code).
		Count(&shelves).Error; err != nil {
		return nil, err
	}
	if shelves > 0 {
		return nil, errors.New("rack has shelves")
	}
	var stock int64
	if err := db.WithContext(ctx).Model(&Placement{}).
		Where("business_id = ? AND rack_code = ? AND quantity > 0", businessId, result.Code).
		Count(&stock).Error; err != nil {
		return nil, err
	}
	if stock > 0 {
		return nil, errors.New("rack has stock")
	}

	// db action
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Rack{}, id).Error; err != nil {
			return err
		}
		if err := bumpWarehouseStats(tx, businessId, result.WarehouseCode, "total_racks", -1); err != nil {
			return err
		}
		return tx.Exec(
			"UPDATE zones SET total_racks = total_racks - 1 WHERE business_id = ? AND code = ?",
			businessId, result.ZoneCode,
		).Error
	})
	if err != nil {
		return nil, err
	}
	_ = utils.ClearRedis[Rack](id)
	return result, nil
}

func GetRack(ctx context.Context, id int) (*Rack, error) {
	return GetResource[Rack](ctx, id)
}

func ListRack(ctx context.Context, zoneCode *string) ([]*Rack, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Rack

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if zoneCode != nil && len(*zoneCode) > 0 {
		dbCtx = dbCtx.Where("zone_code = ?", NormalizeLocationCode(*zoneCode))
	}
	if err := dbCtx.Order("position, code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindRackByCode returns (nil, nil) when the code does not exist.
func FindRackByCode(ctx context.Context, businessId string, code string) (*Rack, error) {
	db := config.GetDB()
	var rack Rack
	err := db.WithContext(ctx).
		Where("business_id = ? AND code = ?", businessId, NormalizeLocationCode(code)).
		First(&rack).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rack, nil
}
