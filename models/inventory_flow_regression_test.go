package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/xuri/excelize/v2"
)

// Regression: the adjustment service and the bulk import must agree on
// the placement ledger and the product counters, and a deduction can
// never take a shelf below zero.
func TestInventoryFlow_AdjustAndImport(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "stockroom_test")
	t.Setenv("PUBLISH_STOCK_EVENTS", "false")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	ctx = utils.SetUserEmailInContext(ctx, "tester@flow.test")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Flow Traders",
		Email: "owner@flow.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	if _, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Code: "WH1", Name: "Main"}); err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	for _, code := range []string{"Z1", "Z2"} {
		if _, err := models.CreateZone(ctx, &models.NewZone{Code: code, Name: "Zone " + code, WarehouseCode: "WH1"}); err != nil {
			t.Fatalf("CreateZone(%s): %v", code, err)
		}
	}
	if _, err := models.CreateRack(ctx, &models.NewRack{Code: "R1", Name: "Rack 1", WarehouseCode: "WH1", ZoneCode: "Z1"}); err != nil {
		t.Fatalf("CreateRack: %v", err)
	}
	for _, code := range []string{"S1", "S2"} {
		_, err := models.CreateShelf(ctx, &models.NewShelf{
			Code: code, Name: "Shelf " + code,
			WarehouseCode: "WH1", ZoneCode: "Z1", RackCode: "R1",
		})
		if err != nil {
			t.Fatalf("CreateShelf(%s): %v", code, err)
		}
	}

	product, err := models.CreateProduct(ctx, &models.NewProduct{Sku: "SKU-1", Name: "Widget"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// Inward 50 onto S1.
	result, err := models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-1", ShelfCode: "S1", Type: "inward", Quantity: 50, Reference: "GRN-1",
	})
	if err != nil {
		t.Fatalf("AdjustInventory(inward): %v", err)
	}
	if result.CurrentInventory.InwardAddition != 50 || result.PlacementQuantity != 50 {
		t.Fatalf("expected inward 50 / placement 50; got %d / %d",
			result.CurrentInventory.InwardAddition, result.PlacementQuantity)
	}

	// Deducting more than the product physically holds must fail with the
	// ceiling in the message.
	_, err = models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-1", ShelfCode: "S1", Type: "deduction", Quantity: 60,
	})
	var exceeds *models.DeductionExceedsStockError
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected DeductionExceedsStockError; got %v", err)
	}
	if exceeds.Available != 50 {
		t.Fatalf("expected ceiling 50; got %d", exceeds.Available)
	}

	// A deduction within the ceiling lands on both ledgers.
	result, err = models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-1", ShelfCode: "S1", Type: "deduction", Quantity: 20, Reference: "SO-1",
	})
	if err != nil {
		t.Fatalf("AdjustInventory(deduction): %v", err)
	}
	if result.CurrentInventory.Deduction != 20 || result.PlacementQuantity != 30 {
		t.Fatalf("expected deduction 20 / placement 30; got %d / %d",
			result.CurrentInventory.Deduction, result.PlacementQuantity)
	}
	if got := result.CurrentInventory.PhysicalStock(); got != 30 {
		t.Fatalf("expected physical stock 30; got %d", got)
	}

	logs, err := models.ListInventoryLogByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("ListInventoryLogByProduct: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 audit entries; got %d", len(logs))
	}

	// Bulk import: one valid row, one unknown shelf, one unknown zone, one
	// fractional quantity, one existing-but-disagreeing zone. Missing
	// entities and hierarchy disagreements skip the row and name the cause;
	// only the malformed quantity is an error.
	data := buildImportWorkbook(t, [][]interface{}{
		{"WH1", "Z1", "R1", "S2", "SKU-1", 10},
		{"WH1", "Z1", "R1", "SX", "SKU-1", 5},
		{"WH1", "ZX", "R1", "S1", "SKU-1", 5},
		{"WH1", "Z1", "R1", "S1", "SKU-1", "2.5"},
		{"WH1", "Z2", "R1", "S1", "SKU-1", 5},
	})
	importResult, err := models.ImportInventory(ctx, "stock.xlsx", data, models.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportInventory: %v", err)
	}
	if importResult.SuccessCount != 1 || importResult.SkippedCount != 3 || importResult.ErrorCount != 1 {
		t.Fatalf("expected 1 success / 3 skipped / 1 error; got %d / %d / %d (%+v)",
			importResult.SuccessCount, importResult.SkippedCount, importResult.ErrorCount, importResult.Rows)
	}
	expectedRows := map[int]struct {
		status  models.ImportRowStatus
		message string
	}{
		3: {models.ImportRowStatusSkipped, "shelf not found"},
		4: {models.ImportRowStatusSkipped, "zone not found"},
		5: {models.ImportRowStatusError, "quantity must be a whole number"},
		6: {models.ImportRowStatusSkipped, "shelf path mismatch"},
	}
	for _, row := range importResult.Rows {
		want, ok := expectedRows[row.RowNumber]
		if !ok {
			continue
		}
		if row.Status != want.status || row.Message != want.message {
			t.Fatalf("row %d: expected %s %q; got %s %q",
				row.RowNumber, want.status, want.message, row.Status, row.Message)
		}
	}
	if importResult.ResultFile == "" {
		t.Fatal("expected a result workbook")
	}

	placement, err := models.FindPlacementByKey(ctx, biz.ID.String(), "SKU-1", "S2")
	if err != nil || placement == nil {
		t.Fatalf("FindPlacementByKey(S2): %v %v", placement, err)
	}
	if placement.Quantity != 10 {
		t.Fatalf("expected S2 placement 10; got %d", placement.Quantity)
	}

	// Counters after the import: inward 50 + 10, deduction 20.
	fresh, err := models.FindProductBySku(ctx, biz.ID.String(), "SKU-1")
	if err != nil {
		t.Fatalf("FindProductBySku: %v", err)
	}
	if fresh.Inventory.InwardAddition != 60 || fresh.Inventory.Deduction != 20 {
		t.Fatalf("expected inward 60 / deduction 20; got %d / %d",
			fresh.Inventory.InwardAddition, fresh.Inventory.Deduction)
	}
	if got := fresh.Inventory.PhysicalStock(); got != 40 {
		t.Fatalf("expected physical stock 40; got %d", got)
	}

	// Dry run commits nothing.
	dryData := buildImportWorkbook(t, [][]interface{}{
		{"WH1", "Z1", "R1", "S2", "SKU-1", 99},
	})
	dryResult, err := models.ImportInventory(ctx, "dry.xlsx", dryData, models.ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportInventory(dry run): %v", err)
	}
	if dryResult.SuccessCount != 1 {
		t.Fatalf("expected dry run success; got %+v", dryResult.Rows)
	}
	placement, err = models.FindPlacementByKey(ctx, biz.ID.String(), "SKU-1", "S2")
	if err != nil {
		t.Fatalf("FindPlacementByKey after dry run: %v", err)
	}
	if placement.Quantity != 10 {
		t.Fatalf("dry run must not change the ledger; got %d", placement.Quantity)
	}

	// Opening stock is deductible without naming a shelf; the ceiling is
	// the product's physical stock.
	gadget, err := models.CreateProduct(ctx, &models.NewProduct{
		Sku: "SKU-2", Name: "Gadget", OpeningStock: 110,
	})
	if err != nil {
		t.Fatalf("CreateProduct(SKU-2): %v", err)
	}
	_, err = models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-2", Type: "deduction", Quantity: 200,
	})
	if !errors.As(err, &exceeds) {
		t.Fatalf("expected DeductionExceedsStockError; got %v", err)
	}
	if exceeds.Available != 110 {
		t.Fatalf("expected ceiling 110; got %d", exceeds.Available)
	}

	result, err = models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-2", Type: "deduction", Quantity: 50, Reference: "SO-2",
	})
	if err != nil {
		t.Fatalf("AdjustInventory(SKU-2 deduction): %v", err)
	}
	if result.ProductName != "Gadget" {
		t.Fatalf("expected product name in the result; got %q", result.ProductName)
	}
	if got := result.CurrentInventory.PhysicalStock(); got != 60 {
		t.Fatalf("expected physical stock 60; got %d", got)
	}

	// A shelf-scoped deduction may not overdraw that shelf even when the
	// product as a whole holds enough.
	_, err = models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-1", ShelfCode: "S1", Type: "deduction", Quantity: 35,
	})
	if err == nil || !strings.Contains(err.Error(), "would go negative") {
		t.Fatalf("expected shelf overdraw rejection; got %v", err)
	}
	// Same for a shelf the sku was never placed on.
	_, err = models.AdjustInventory(ctx, &models.NewAdjustment{
		Sku: "SKU-2", ShelfCode: "S2", Type: "deduction", Quantity: 10,
	})
	if err == nil || !strings.Contains(err.Error(), "would go negative") {
		t.Fatalf("expected unplaced shelf rejection; got %v", err)
	}

	// The audit entry records the performer and the stock snapshots.
	logs, err = models.ListInventoryLogByProduct(ctx, gadget.ID)
	if err != nil {
		t.Fatalf("ListInventoryLogByProduct(SKU-2): %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit entry for SKU-2; got %d", len(logs))
	}
	entry := logs[0]
	if entry.PreviousPhysicalStock != 110 || entry.NewPhysicalStock != 60 {
		t.Fatalf("expected physical stock 110 -> 60 in the audit entry; got %d -> %d",
			entry.PreviousPhysicalStock, entry.NewPhysicalStock)
	}
	if entry.PreviousAvailableStock != 110 || entry.NewAvailableStock != 60 {
		t.Fatalf("expected available stock 110 -> 60 in the audit entry; got %d -> %d",
			entry.PreviousAvailableStock, entry.NewAvailableStock)
	}
	if entry.PerformedByEmail != "tester@flow.test" {
		t.Fatalf("expected performer email in the audit entry; got %q", entry.PerformedByEmail)
	}
}

// Regression: a file without one of the canonical columns fails before
// any row is processed.
func TestInventoryImport_MissingColumnFailsFile(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "stockroom_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Header Co",
		Email: "owner@header.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Warehouse Code")
	f.SetCellValue("Sheet1", "B1", "Zone Code")
	f.SetCellValue("Sheet1", "C1", "Rack Code")
	f.SetCellValue("Sheet1", "D1", "Shelf Code")
	f.SetCellValue("Sheet1", "E1", "Business Product SKU")
	// Quantity column missing on purpose.
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	_, err = models.ImportInventory(ctx, "broken.xlsx", buf.Bytes(), models.ImportOptions{})
	if err == nil || err.Error() != "missing required column: Business Product Quantity" {
		t.Fatalf("expected missing column error; got %v", err)
	}
}

func buildImportWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	headers := []string{
		"Warehouse Code", "Zone Code", "Rack Code",
		"Shelf Code", "Business Product SKU", "Business Product Quantity",
	}
	for idx, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(idx+1, 1)
		f.SetCellValue("Sheet1", cell, h)
	}
	for i, row := range rows {
		for idx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(idx+1, i+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stockroom-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stockroom-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=stockroom_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
