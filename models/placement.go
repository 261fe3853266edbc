package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Placement is one ledger row per product-per-shelf. The key is derived,
// never user supplied, so the same sku on the same shelf always lands on
// the same row. Location fields are a denormalized snapshot taken when the
// row is first written.
type Placement struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	PlacementKey  string    `gorm:"size:160;not null;index:idx_placement_key,unique,composite:business_id" json:"placement_key"`
	Sku           string    `gorm:"size:100;not null;index" json:"sku"`
	ShelfCode     string    `gorm:"size:50;not null;index" json:"shelf_code"`
	RackCode      string    `gorm:"size:50;not null" json:"rack_code"`
	ZoneCode      string    `gorm:"size:50;not null" json:"zone_code"`
	WarehouseCode string    `gorm:"size:50;not null;index" json:"warehouse_code"`
	Quantity      int64     `gorm:"default:0" json:"quantity"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Placement) GetBusinessId() string {
	return obj.BusinessId
}

// PlacementKeyFor derives the ledger key for a sku on a shelf.
func PlacementKeyFor(sku string, shelfCode string) string {
	return fmt.Sprintf("%s_%s", NormalizeSku(sku), NormalizeLocationCode(shelfCode))
}

// upsertPlacementQuantity adds delta to the placement row inside tx,
// creating the row with the shelf's location snapshot when it does not
// exist yet. A brand new product count on the shelf bumps location stats.
func upsertPlacementQuantity(tx *gorm.DB, businessId string, sku string, shelf *Shelf, delta int64) error {
	key := PlacementKeyFor(sku, shelf.Code)

	var existing Placement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND placement_key = ?", businessId, key).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if delta < 0 {
			return fmt.Errorf("placement %s would go negative", key)
		}
		placement := Placement{
			BusinessId:    businessId,
			PlacementKey:  key,
			Sku:           NormalizeSku(sku),
			ShelfCode:     shelf.Code,
			RackCode:      shelf.RackCode,
			ZoneCode:      shelf.ZoneCode,
			WarehouseCode: shelf.WarehouseCode,
			Quantity:      delta,
		}
		if err := tx.Create(&placement).Error; err != nil {
			return err
		}
		if err := bumpWarehouseStats(tx, businessId, shelf.WarehouseCode, "total_products", 1); err != nil {
			return err
		}
		return tx.Exec(
			"UPDATE zones SET total_products = total_products + 1 WHERE business_id = ? AND code = ?",
			businessId, shelf.ZoneCode,
		).Error
	}

	if existing.Quantity+delta < 0 {
		return fmt.Errorf("placement %s would go negative", key)
	}
	return tx.Exec(
		"UPDATE placements SET quantity = quantity + ? WHERE business_id = ? AND placement_key = ?",
		delta, businessId, key,
	).Error
}

// FindPlacementByKey returns (nil, nil) when no ledger row exists yet.
func FindPlacementByKey(ctx context.Context, businessId string, sku string, shelfCode string) (*Placement, error) {
	db := config.GetDB()
	var placement Placement
	err := db.WithContext(ctx).
		Where("business_id = ? AND placement_key = ?", businessId, PlacementKeyFor(sku, shelfCode)).
		First(&placement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &placement, nil
}

type PlacementFilter struct {
	Sku           *string
	ShelfCode     *string
	WarehouseCode *string
	NonZeroOnly   bool
}

func ListPlacement(ctx context.Context, filter *PlacementFilter) ([]*Placement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter != nil {
		if filter.Sku != nil && len(*filter.Sku) > 0 {
			dbCtx = dbCtx.Where("sku = ?", NormalizeSku(*filter.Sku))
		}
		if filter.ShelfCode != nil && len(*filter.ShelfCode) > 0 {
			dbCtx = dbCtx.Where("shelf_code = ?", NormalizeLocationCode(*filter.ShelfCode))
		}
		if filter.WarehouseCode != nil && len(*filter.WarehouseCode) > 0 {
			dbCtx = dbCtx.Where("warehouse_code = ?", NormalizeLocationCode(*filter.WarehouseCode))
		}
		if filter.NonZeroOnly {
			dbCtx = dbCtx.Where("quantity > 0")
		}
	}

	var results []*Placement
	if err := dbCtx.Order("placement_key").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
