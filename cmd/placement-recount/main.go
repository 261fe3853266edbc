// placement-recount compares every product's counters against the sum of
// its placement ledger rows and reports drift. With --fix it closes the
// drift through the auto counters and appends a recount entry to the
// audit trail.
//
// Usage:
//   go run ./cmd/placement-recount --business-id <uuid> [--fix]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	fix := flag.Bool("fix", false, "Write corrections instead of only reporting")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)
	ctx = utils.SetUsernameInContext(ctx, "placement-recount")

	var products []*models.Product
	if err := db.WithContext(ctx).Where("business_id = ?", *businessID).Find(&products).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list products: %v\n", err)
		os.Exit(1)
	}

	drifted := 0
	for _, product := range products {
		var placed int64
		err := db.WithContext(ctx).Model(&models.Placement{}).
			Where("business_id = ? AND sku = ?", *businessID, product.Sku).
			Select("COALESCE(SUM(quantity), 0)").Scan(&placed).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to sum placements for %s: %v\n", product.Sku, err)
			os.Exit(1)
		}

		physical := product.Inventory.PhysicalStock()
		drift := physical - placed
		if drift == 0 {
			continue
		}
		drifted++

		logger.WithFields(logrus.Fields{
			"sku":      product.Sku,
			"physical": physical,
			"placed":   placed,
			"drift":    drift,
		}).Warn("placement drift detected")

		if !*fix {
			continue
		}

		if err := fixDrift(ctx, db, *businessID, product, drift); err != nil {
			fmt.Fprintf(os.Stderr, "failed to fix %s: %v\n", product.Sku, err)
			os.Exit(1)
		}
		logger.WithFields(logrus.Fields{"sku": product.Sku}).Info("drift corrected")
	}

	fmt.Printf("checked %d products, %d with drift\n", len(products), drifted)
}

// fixDrift moves the difference into the auto counters so physical stock
// matches the ledger sum, recording the correction in the audit trail.
func fixDrift(ctx context.Context, db *gorm.DB, businessId string, stale *models.Product, drift int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND sku = ?", businessId, stale.Sku).
			First(&product).Error
		if err != nil {
			return err
		}

		column := "inv_auto_deduction"
		field := "auto_deduction"
		previous := product.Inventory.AutoDeduction
		amount := drift
		if drift < 0 {
			column = "inv_auto_addition"
			field = "auto_addition"
			previous = product.Inventory.AutoAddition
			amount = -drift
		}

		err = tx.Exec(
			fmt.Sprintf("UPDATE products SET %s = %s + ? WHERE business_id = ? AND sku = ?", column, column),
			amount, businessId, product.Sku,
		).Error
		if err != nil {
			return err
		}

		changes, err := json.Marshal([]models.StockChange{{
			Field:    field,
			Previous: previous,
			Current:  previous + amount,
		}})
		if err != nil {
			return err
		}
		after := product.Inventory
		if drift < 0 {
			after.AutoAddition += amount
		} else {
			after.AutoDeduction += amount
		}
		log := models.InventoryLog{
			BusinessId:             businessId,
			Action:                 models.LogActionRecount,
			ProductId:              product.ID,
			Sku:                    product.Sku,
			Quantity:               -drift,
			Reference:              "placement-recount",
			Changes:                string(changes),
			PreviousPhysicalStock:  product.Inventory.PhysicalStock(),
			NewPhysicalStock:       after.PhysicalStock(),
			PreviousAvailableStock: product.Inventory.AvailableStock(),
			NewAvailableStock:      after.AvailableStock(),
			PerformedBy:            "placement-recount",
		}
		return tx.Create(&log).Error
	})
}
