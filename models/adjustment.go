package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrShelfNotFound     = errors.New("shelf not found")
	ErrShelfPathMismatch = errors.New("shelf path mismatch")
)

// DeductionExceedsStockError reports a deduction larger than the product's
// current physical stock, carrying the ceiling for the caller.
type DeductionExceedsStockError struct {
	Requested int64
	Available int64
}

func (e *DeductionExceedsStockError) Error() string {
	return fmt.Sprintf("deduction of %d exceeds available stock, maximum deductible quantity is %d",
		e.Requested, e.Available)
}

// ShelfCode is required for inward movements, which must land somewhere.
// Deductions may omit it when the stock was never placed (opening stock);
// with a shelf given, that shelf's placement is drawn down as well.
type NewAdjustment struct {
	Sku       string `json:"sku" binding:"required"`
	ShelfCode string `json:"shelf_code"`
	Type      string `json:"type" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
	Reference string `json:"reference"`
}

// AdjustmentResult carries the before and after counters so the caller can
// render the effect of the adjustment without a second read.
type AdjustmentResult struct {
	Sku               string            `json:"sku"`
	ProductName       string            `json:"product_name"`
	ShelfCode         string            `json:"shelf_code,omitempty"`
	Type              AdjustmentType    `json:"type"`
	Quantity          int64             `json:"quantity"`
	PreviousInventory InventoryCounters `json:"previous_inventory"`
	CurrentInventory  InventoryCounters `json:"current_inventory"`
	PlacementQuantity int64             `json:"placement_quantity"`
	LogId             int               `json:"log_id"`
}

// resolveShelfPath loads the shelf and each ancestor it declares, then
// checks the whole chain agrees. Any missing or disagreeing level fails.
func resolveShelfPath(ctx context.Context, businessId string, shelfCode string) (*Shelf, error) {
	shelf, err := FindShelfByCode(ctx, businessId, shelfCode)
	if err != nil {
		return nil, err
	}
	if shelf == nil {
		return nil, ErrShelfNotFound
	}
	rack, err := FindRackByCode(ctx, businessId, shelf.RackCode)
	if err != nil {
		return nil, err
	}
	zone, err := FindZoneByCode(ctx, businessId, shelf.ZoneCode)
	if err != nil {
		return nil, err
	}
	warehouse, err := FindWarehouseByCode(ctx, businessId, shelf.WarehouseCode)
	if err != nil {
		return nil, err
	}
	if !ValidateShelfPath(shelf, rack, zone, warehouse) {
		return nil, ErrShelfPathMismatch
	}
	return shelf, nil
}

// AdjustInventory applies one inward or deduction movement. The product
// row is locked for the whole transaction and the deduction ceiling, the
// product's physical stock, is re-checked under that lock, so two
// concurrent deductions can never take the stock below zero.
func AdjustInventory(ctx context.Context, input *NewAdjustment) (*AdjustmentResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	adjustmentType := AdjustmentType(input.Type)
	if !adjustmentType.IsValid() {
		return nil, fmt.Errorf("invalid adjustment type: %s", input.Type)
	}
	if input.Quantity <= 0 {
		return nil, errors.New("quantity must be a positive number")
	}
	if adjustmentType == AdjustmentTypeInward && strings.TrimSpace(input.ShelfCode) == "" {
		return nil, errors.New("shelf code is required")
	}

	var shelf *Shelf
	if strings.TrimSpace(input.ShelfCode) != "" {
		var err error
		shelf, err = resolveShelfPath(ctx, businessId, input.ShelfCode)
		if err != nil {
			return nil, err
		}
	}

	result := AdjustmentResult{
		Sku:      NormalizeSku(input.Sku),
		Type:     adjustmentType,
		Quantity: input.Quantity,
	}
	if shelf != nil {
		result.ShelfCode = shelf.Code
	}

	// db action
	var productId int
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var product Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND sku = ?", businessId, result.Sku).
			First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		result.ProductName = product.Name
		result.PreviousInventory = product.Inventory

		var column string
		var placementDelta int64
		var change StockChange

		switch adjustmentType {
		case AdjustmentTypeInward:
			column = "inv_inward_addition"
			placementDelta = input.Quantity
			change = StockChange{
				Field:    "inward_addition",
				Previous: product.Inventory.InwardAddition,
				Current:  product.Inventory.InwardAddition + input.Quantity,
			}
			result.CurrentInventory = product.Inventory
			result.CurrentInventory.InwardAddition += input.Quantity
		case AdjustmentTypeDeduction:
			available := product.Inventory.PhysicalStock()
			if input.Quantity > available {
				return &DeductionExceedsStockError{Requested: input.Quantity, Available: available}
			}
			column = "inv_deduction"
			placementDelta = -input.Quantity
			change = StockChange{
				Field:    "deduction",
				Previous: product.Inventory.Deduction,
				Current:  product.Inventory.Deduction + input.Quantity,
			}
			result.CurrentInventory = product.Inventory
			result.CurrentInventory.Deduction += input.Quantity
		}

		err = tx.Exec(
			fmt.Sprintf("UPDATE products SET %s = %s + ? WHERE business_id = ? AND sku = ?", column, column),
			input.Quantity, businessId, result.Sku,
		).Error
		if err != nil {
			return err
		}

		if shelf != nil {
			// The non-negative placement invariant still holds per shelf.
			if err := upsertPlacementQuantity(tx, businessId, result.Sku, shelf, placementDelta); err != nil {
				return err
			}
		}

		log, err := createInventoryLog(ctx, tx, businessId, LogActionAdjustment,
			&product, result.ShelfCode, placementDelta, input.Reference,
			[]StockChange{change}, result.PreviousInventory, result.CurrentInventory)
		if err != nil {
			return err
		}
		result.LogId = log.ID

		if shelf != nil {
			placement, err := lockPlacement(tx, businessId, result.Sku, shelf.Code)
			if err != nil {
				return err
			}
			if placement != nil {
				result.PlacementQuantity = placement.Quantity
			}
		}
		productId = product.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.ClearRedis[Product](productId)

	if config.PublishStockEvents() {
		performedBy, _ := utils.GetUsernameFromContext(ctx)
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		config.PublishStockMovement(ctx, &config.StockMovementMessage{
			BusinessId:    businessId,
			MovementType:  string(adjustmentType),
			Sku:           result.Sku,
			Quantity:      input.Quantity,
			Reference:     input.Reference,
			PerformedBy:   performedBy,
			PerformedAt:   time.Now().UTC(),
			CorrelationId: correlationId,
		})
	}

	return &result, nil
}

// lockPlacement reads the ledger row under a row lock, (nil, nil) when the
// sku has never been placed on the shelf.
func lockPlacement(tx *gorm.DB, businessId string, sku string, shelfCode string) (*Placement, error) {
	var placement Placement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
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
