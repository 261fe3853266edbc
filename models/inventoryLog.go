package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"gorm.io/gorm"
)

// InventoryLog is the append-only audit trail. Rows are only ever created,
// always inside the same transaction as the stock mutation they record.
type InventoryLog struct {
	ID                     int       `gorm:"primary_key" json:"id"`
	BusinessId             string    `gorm:"index;not null" json:"business_id"`
	Action                 string    `gorm:"size:50;not null" json:"action"`
	ProductId              int       `gorm:"index;not null" json:"product_id"`
	Sku                    string    `gorm:"size:100;not null;index" json:"sku"`
	ShelfCode              string    `gorm:"size:50" json:"shelf_code"`
	Quantity               int64     `gorm:"not null" json:"quantity"`
	Reference              string    `gorm:"size:255" json:"reference"`
	Changes                string    `gorm:"type:text" json:"changes"`
	PreviousPhysicalStock  int64     `json:"previous_physical_stock"`
	NewPhysicalStock       int64     `json:"new_physical_stock"`
	PreviousAvailableStock int64     `json:"previous_available_stock"`
	NewAvailableStock      int64     `json:"new_available_stock"`
	PerformedBy            string    `gorm:"size:100" json:"performed_by"`
	PerformedByEmail       string    `gorm:"size:100" json:"performed_by_email"`
	CorrelationId          string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (obj InventoryLog) GetBusinessId() string {
	return obj.BusinessId
}

// StockChange captures the before and after of one counter for the
// changes payload.
type StockChange struct {
	Field    string `json:"field"`
	Previous int64  `json:"previous"`
	Current  int64  `json:"current"`
}

// createInventoryLog appends an audit row inside the caller's transaction,
// snapshotting the derived stock figures before and after the movement.
// The performer and correlation id come from the request context.
func createInventoryLog(ctx context.Context, tx *gorm.DB, businessId string, action string,
	product *Product, shelfCode string, quantity int64, reference string,
	changes []StockChange, previous, current InventoryCounters) (*InventoryLog, error) {

	payload, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}

	performedBy, _ := utils.GetUsernameFromContext(ctx)
	performedByEmail, _ := utils.GetUserEmailFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	log := InventoryLog{
		BusinessId:             businessId,
		Action:                 action,
		ProductId:              product.ID,
		Sku:                    product.Sku,
		ShelfCode:              shelfCode,
		Quantity:               quantity,
		Reference:              reference,
		Changes:                string(payload),
		PreviousPhysicalStock:  previous.PhysicalStock(),
		NewPhysicalStock:       current.PhysicalStock(),
		PreviousAvailableStock: previous.AvailableStock(),
		NewAvailableStock:      current.AvailableStock(),
		PerformedBy:            performedBy,
		PerformedByEmail:       performedByEmail,
		CorrelationId:          correlationId,
	}
	if err := tx.Create(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func ListInventoryLogByProduct(ctx context.Context, productId int) ([]*InventoryLog, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := utils.ValidateResourceId[Product](ctx, businessId, productId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*InventoryLog
	err := db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("created_at DESC, id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
