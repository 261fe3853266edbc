package models

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Canonical spreadsheet columns. Header matching is case and surrounding
// whitespace insensitive, but every one of these must be present.
var importColumns = []string{
	"Warehouse Code",
	"Zone Code",
	"Rack Code",
	"Shelf Code",
	"Business Product SKU",
	"Business Product Quantity",
}

type ImportOptions struct {
	DryRun bool `json:"dry_run"`
}

type ImportResult struct {
	Filename      string       `json:"filename"`
	DryRun        bool         `json:"dry_run"`
	TotalRows     int          `json:"total_rows"`
	SuccessCount  int          `json:"success_count"`
	SkippedCount  int          `json:"skipped_count"`
	ErrorCount    int          `json:"error_count"`
	Rows          []*ImportRow `json:"rows"`
	ResultFile    string       `json:"result_file"`
	ResultFileURL string       `json:"result_file_url,omitempty"`
}

func normalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// mapImportColumns resolves each canonical column to its index in the
// header row. Any absent column fails the whole file before row work.
func mapImportColumns(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for idx, cell := range header {
		positions[normalizeHeader(cell)] = idx
	}
	columns := make(map[string]int, len(importColumns))
	for _, name := range importColumns {
		idx, ok := positions[normalizeHeader(name)]
		if !ok {
			return nil, fmt.Errorf("missing required column: %s", name)
		}
		columns[name] = idx
	}
	return columns, nil
}

// parseImportFile reads xlsx through excelize and csv through the stdlib
// reader, returning raw rows with the header first.
func parseImportFile(filename string, data []byte) ([][]string, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unable to open Excel file: %v", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("unable to read sheet: %v", err)
		}
		return rows, nil
	case strings.HasSuffix(lower, ".csv"):
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("unable to read csv file: %v", err)
		}
		return rows, nil
	case strings.HasSuffix(lower, ".xls"):
		return nil, errors.New("legacy .xls format is not supported, save the file as .xlsx or .csv")
	default:
		return nil, errors.New("invalid file type: only .xlsx and .csv files are allowed")
	}
}

func cellAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// buildImportRow applies the row-local checks that need no database:
// required cells and quantity syntax. Rows it rejects never reach the
// resolution stage.
func buildImportRow(record []string, columns map[string]int, rowNumber int) *ImportRow {
	row := &ImportRow{
		RowNumber:     rowNumber,
		WarehouseCode: cellAt(record, columns["Warehouse Code"]),
		ZoneCode:      cellAt(record, columns["Zone Code"]),
		RackCode:      cellAt(record, columns["Rack Code"]),
		ShelfCode:     cellAt(record, columns["Shelf Code"]),
		Sku:           cellAt(record, columns["Business Product SKU"]),
		QuantityRaw:   cellAt(record, columns["Business Product Quantity"]),
	}

	if isBlankRecord(record) {
		row.Status = ImportRowStatusSkipped
		row.Message = "empty row"
		return row
	}
	if row.Sku == "" {
		row.Status = ImportRowStatusError
		row.Message = "product sku is required"
		return row
	}
	for _, missing := range []struct{ value, name string }{
		{row.WarehouseCode, "warehouse code"},
		{row.ZoneCode, "zone code"},
		{row.RackCode, "rack code"},
		{row.ShelfCode, "shelf code"},
	} {
		if missing.value == "" {
			row.Status = ImportRowStatusError
			row.Message = missing.name + " is required"
			return row
		}
	}

	quantity, err := utils.ParseWholeQuantity(row.QuantityRaw)
	if err != nil {
		row.Status = ImportRowStatusError
		row.Message = err.Error()
		return row
	}
	if quantity <= 0 {
		row.Status = ImportRowStatusError
		row.Message = "quantity must be a positive number"
		return row
	}
	row.Quantity = quantity
	return row
}

// resolveImportRows checks each pending row against the location records
// and the product catalog. Rows resolve concurrently under a bounded
// window; each goroutine only touches its own slot.
func resolveImportRows(ctx context.Context, businessId string, rows []*ImportRow) []stagedInward {
	window := config.ImportResolveWindow()
	sem := make(chan struct{}, window)
	resolved := make([]stagedInward, len(rows))

	var wg sync.WaitGroup
	for i, row := range rows {
		if row.Status != "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, row *ImportRow) {
			defer wg.Done()
			defer func() { <-sem }()
			resolved[i] = resolveImportRow(ctx, businessId, row)
		}(i, row)
	}
	wg.Wait()

	staged := make([]stagedInward, 0, len(rows))
	for i, row := range rows {
		if row.Status != "" {
			continue
		}
		resolved[i].row = row
		staged = append(staged, resolved[i])
	}
	return staged
}

// resolveImportRow classifies missing entities and hierarchy mismatches
// as Skipped, each naming what was absent. Only store errors mark the row
// Error at this stage.
func resolveImportRow(ctx context.Context, businessId string, row *ImportRow) stagedInward {
	skip := func(message string) stagedInward {
		row.Status = ImportRowStatusSkipped
		row.Message = message
		return stagedInward{}
	}
	fail := func(err error) stagedInward {
		row.Status = ImportRowStatusError
		row.Message = err.Error()
		return stagedInward{}
	}

	shelf, err := FindShelfByCode(ctx, businessId, row.ShelfCode)
	if err != nil {
		return fail(err)
	}
	if shelf == nil {
		return skip("shelf not found")
	}

	rack, err := FindRackByCode(ctx, businessId, row.RackCode)
	if err != nil {
		return fail(err)
	}
	if rack == nil {
		return skip("rack not found")
	}

	zone, err := FindZoneByCode(ctx, businessId, row.ZoneCode)
	if err != nil {
		return fail(err)
	}
	if zone == nil {
		return skip("zone not found")
	}

	warehouse, err := FindWarehouseByCode(ctx, businessId, row.WarehouseCode)
	if err != nil {
		return fail(err)
	}
	if warehouse == nil {
		return skip("warehouse not found")
	}

	if !ValidateShelfPath(shelf, rack, zone, warehouse) {
		return skip("shelf path mismatch")
	}

	product, err := FindProductBySku(ctx, businessId, row.Sku)
	if err != nil {
		return fail(err)
	}
	if product == nil {
		return skip("product not found")
	}

	return stagedInward{shelf: shelf, quantity: row.Quantity}
}

// commitInwardChunk writes one chunk in a single transaction: per row the
// product counter bump, the placement upsert and the audit entry.
func commitInwardChunk(ctx context.Context, businessId string, reference string) func(batch []stagedInward) error {
	return func(batch []stagedInward) error {
		productIds := make([]int, 0, len(batch))

		db := config.GetDB()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, op := range batch {
				var product Product
				err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("business_id = ? AND sku = ?", businessId, NormalizeSku(op.row.Sku)).
					First(&product).Error
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("row %d: product not found", op.row.RowNumber)
					}
					return err
				}

				err = tx.Exec(
					"UPDATE products SET inv_inward_addition = inv_inward_addition + ? WHERE business_id = ? AND sku = ?",
					op.quantity, businessId, product.Sku,
				).Error
				if err != nil {
					return err
				}

				if err := upsertPlacementQuantity(tx, businessId, product.Sku, op.shelf, op.quantity); err != nil {
					return err
				}

				change := StockChange{
					Field:    "inward_addition",
					Previous: product.Inventory.InwardAddition,
					Current:  product.Inventory.InwardAddition + op.quantity,
				}
				after := product.Inventory
				after.InwardAddition += op.quantity
				if _, err := createInventoryLog(ctx, tx, businessId, LogActionBulkInward,
					&product, op.shelf.Code, op.quantity, reference,
					[]StockChange{change}, product.Inventory, after); err != nil {
					return err
				}
				productIds = append(productIds, product.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range utils.UniqueSlice(productIds) {
			utils.ClearRedis[Product](id)
		}

		if config.PublishStockEvents() {
			performedBy, _ := utils.GetUsernameFromContext(ctx)
			correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
			config.PublishStockMovement(ctx, &config.StockMovementMessage{
				BusinessId:    businessId,
				MovementType:  "bulk_inward",
				Reference:     reference,
				RowCount:      len(batch),
				PerformedBy:   performedBy,
				PerformedAt:   time.Now().UTC(),
				CorrelationId: correlationId,
			})
		}
		return nil
	}
}

// ImportInventory runs the whole bulk inward pipeline on an uploaded
// spreadsheet. Structural problems fail the file; row problems only fail
// their row. One import runs per business at a time.
func ImportInventory(ctx context.Context, filename string, data []byte, options ImportOptions) (*ImportResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	lock, err := utils.ObtainBusinessLock(ctx, businessId, "inventory-import", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	defer lock.Release(context.Background())

	records, err := parseImportFile(filename, data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("file has no header row")
	}

	columns, err := mapImportColumns(records[0])
	if err != nil {
		return nil, err
	}
	if len(records) == 1 {
		return nil, errors.New("file has no data rows")
	}

	rows := make([]*ImportRow, 0, len(records)-1)
	for idx, record := range records[1:] {
		rows = append(rows, buildImportRow(record, columns, idx+2))
	}

	staged := resolveImportRows(ctx, businessId, rows)

	if options.DryRun {
		for _, op := range staged {
			op.row.Status = ImportRowStatusSuccess
			op.row.Message = "validated (dry run)"
		}
	} else {
		batch := newImportBatch(config.ImportChunkSize(), commitInwardChunk(ctx, businessId, filename))
		aborted := false
		for _, op := range staged {
			if aborted {
				op.row.Status = ImportRowStatusError
				op.row.Message = "not processed: earlier chunk failed"
				continue
			}
			if err := batch.add(op); err != nil {
				aborted = true
				op.row.Status = ImportRowStatusError
				op.row.Message = "not processed: earlier chunk failed"
			}
		}
		if !aborted {
			if err := batch.flush(); err != nil {
				aborted = true
			}
		}
	}

	result := &ImportResult{
		Filename:  filename,
		DryRun:    options.DryRun,
		TotalRows: len(rows),
		Rows:      rows,
	}
	for _, row := range rows {
		switch row.Status {
		case ImportRowStatusSuccess:
			result.SuccessCount++
		case ImportRowStatusSkipped:
			result.SkippedCount++
		default:
			result.ErrorCount++
		}
	}

	resultBytes, err := buildImportResultWorkbook(rows)
	if err != nil {
		return nil, err
	}
	result.ResultFile = base64.StdEncoding.EncodeToString(resultBytes)

	if utils.GCSBucketConfigured() {
		objectName := businessId + "_" + utils.GenerateUniqueFilename() + "_import_result.xlsx"
		url, err := utils.UploadBytesToGCS(ctx, objectName, resultBytes,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "models", "ImportInventory", "Could not archive result file", businessId, err)
		} else {
			result.ResultFileURL = url
		}
	}

	return result, nil
}

// buildImportResultWorkbook writes the processed rows back out with Status
// and Message columns, color coded per status.
func buildImportResultWorkbook(rows []*ImportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headers := append(append([]string{}, importColumns...), "Status", "Message")
	for idx, h := range headers {
		cell, err := excelize.CoordinatesToCellName(idx+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue("Sheet1", cell, h)
	}

	styles := map[ImportRowStatus]int{}
	for status, color := range map[ImportRowStatus]string{
		ImportRowStatusSuccess: "E2EFDA",
		ImportRowStatusSkipped: "FFF2CC",
		ImportRowStatusError:   "FCE4EC",
	} {
		styleId, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, err
		}
		styles[status] = styleId
	}

	for i, row := range rows {
		rowNo := i + 2
		values := []interface{}{
			row.WarehouseCode, row.ZoneCode, row.RackCode, row.ShelfCode,
			row.Sku, row.QuantityRaw, string(row.Status), row.Message,
		}
		for idx, value := range values {
			cell, err := excelize.CoordinatesToCellName(idx+1, rowNo)
			if err != nil {
				return nil, err
			}
			f.SetCellValue("Sheet1", cell, value)
		}
		if styleId, ok := styles[row.Status]; ok {
			first, _ := excelize.CoordinatesToCellName(1, rowNo)
			last, _ := excelize.CoordinatesToCellName(len(values), rowNo)
			f.SetCellStyle("Sheet1", first, last, styleId)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
