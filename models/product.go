package models

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

// InventoryCounters are the per-product running totals. Every counter is
// monotonically increasing except via recount; derived stock figures are
// computed, never stored.
type InventoryCounters struct {
	OpeningStock   int64 `gorm:"default:0" json:"opening_stock"`
	InwardAddition int64 `gorm:"default:0" json:"inward_addition"`
	Deduction      int64 `gorm:"default:0" json:"deduction"`
	AutoAddition   int64 `gorm:"default:0" json:"auto_addition"`
	AutoDeduction  int64 `gorm:"default:0" json:"auto_deduction"`
	BlockedStock   int64 `gorm:"default:0" json:"blocked_stock"`
}

type Product struct {
	ID         int               `gorm:"primary_key" json:"id"`
	BusinessId string            `gorm:"index;not null" json:"business_id"`
	Sku        string            `gorm:"size:100;not null;index:idx_product_sku,unique,composite:business_id" json:"sku" binding:"required"`
	Name       string            `gorm:"size:255;not null" json:"name" binding:"required"`
	Unit       string            `gorm:"size:20;default:'pcs'" json:"unit"`
	IsActive   *bool             `gorm:"default:true" json:"is_active"`
	Inventory  InventoryCounters `gorm:"embedded;embeddedPrefix:inv_" json:"inventory"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku          string `json:"sku" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Unit         string `json:"unit"`
	OpeningStock int64  `json:"opening_stock"`
}

func (obj Product) GetBusinessId() string {
	return obj.BusinessId
}

// PhysicalStock is everything that has physically entered minus everything
// that has physically left.
func (c InventoryCounters) PhysicalStock() int64 {
	return c.OpeningStock + c.InwardAddition + c.AutoAddition - c.Deduction - c.AutoDeduction
}

// AvailableStock is physical stock minus reservations.
func (c InventoryCounters) AvailableStock() int64 {
	return c.PhysicalStock() - c.BlockedStock
}

// InventorySnapshot is the read-side view of the counters with the derived
// stock figures filled in.
type InventorySnapshot struct {
	OpeningStock   int64 `json:"opening_stock"`
	InwardAddition int64 `json:"inward_addition"`
	Deduction      int64 `json:"deduction"`
	AutoAddition   int64 `json:"auto_addition"`
	AutoDeduction  int64 `json:"auto_deduction"`
	BlockedStock   int64 `json:"blocked_stock"`
	PhysicalStock  int64 `json:"physical_stock"`
	AvailableStock int64 `json:"available_stock"`
}

func (c InventoryCounters) Snapshot() InventorySnapshot {
	return InventorySnapshot{
		OpeningStock:   c.OpeningStock,
		InwardAddition: c.InwardAddition,
		Deduction:      c.Deduction,
		AutoAddition:   c.AutoAddition,
		AutoDeduction:  c.AutoDeduction,
		BlockedStock:   c.BlockedStock,
		PhysicalStock:  c.PhysicalStock(),
		AvailableStock: c.AvailableStock(),
	}
}

// Counters always serialize with the derived figures so API consumers
// never recompute the stock formulas client-side.
func (c InventoryCounters) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// NormalizeSku canonicalizes a SKU the same way as location codes, so
// placement keys never split on letter case.
func NormalizeSku(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	sku := NormalizeSku(input.Sku)
	if sku == "" {
		return nil, errors.New("product sku is required")
	}
	if err := utils.ValidateUnique[Product](ctx, businessId, "sku", sku, 0); err != nil {
		return nil, err
	}
	if input.OpeningStock < 0 {
		return nil, errors.New("opening stock cannot be negative")
	}

	unit := input.Unit
	if unit == "" {
		unit = "pcs"
	}

	product := Product{
		BusinessId: businessId,
		Sku:        sku,
		Name:       input.Name,
		Unit:       unit,
		IsActive:   utils.NewTrue(),
		Inventory: InventoryCounters{
			OpeningStock: input.OpeningStock,
		},
	}

	// db action
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func ListProduct(ctx context.Context) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Product](ctx, businessId)
}

// FindProductBySku returns (nil, nil) when the sku does not exist.
func FindProductBySku(ctx context.Context, businessId string, sku string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).
		Where("business_id = ? AND sku = ?", businessId, NormalizeSku(sku)).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}
