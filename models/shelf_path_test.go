package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/stockroom_backend/models"
)

func validChain() (*models.Shelf, *models.Rack, *models.Zone, *models.Warehouse) {
	warehouse := &models.Warehouse{Code: "WH1"}
	zone := &models.Zone{Code: "Z1", WarehouseCode: "WH1"}
	rack := &models.Rack{Code: "R1", ZoneCode: "Z1", WarehouseCode: "WH1"}
	shelf := &models.Shelf{Code: "S1", RackCode: "R1", ZoneCode: "Z1", WarehouseCode: "WH1"}
	return shelf, rack, zone, warehouse
}

func TestValidateShelfPath_ValidChain(t *testing.T) {
	shelf, rack, zone, warehouse := validChain()
	if !models.ValidateShelfPath(shelf, rack, zone, warehouse) {
		t.Fatal("expected a fully agreeing chain to validate")
	}
}

func TestValidateShelfPath_NilLevels(t *testing.T) {
	shelf, rack, zone, warehouse := validChain()
	cases := []struct {
		name string
		ok   bool
	}{{"nil shelf", models.ValidateShelfPath(nil, rack, zone, warehouse)},
		{"nil rack", models.ValidateShelfPath(shelf, nil, zone, warehouse)},
		{"nil zone", models.ValidateShelfPath(shelf, rack, nil, warehouse)},
		{"nil warehouse", models.ValidateShelfPath(shelf, rack, zone, nil)}}
	for _, tc := range cases {
		if tc.ok {
			t.Errorf("%s: expected invalid", tc.name)
		}
	}
}

func TestValidateShelfPath_Disagreements(t *testing.T) {
	// Shelf pointing at a different rack.
	shelf, rack, zone, warehouse := validChain()
	shelf.RackCode = "R2"
	if models.ValidateShelfPath(shelf, rack, zone, warehouse) {
		t.Error("shelf.RackCode mismatch should fail")
	}

	// Rack living in a different zone than the shelf claims.
	shelf, rack, zone, warehouse = validChain()
	rack.ZoneCode = "Z2"
	if models.ValidateShelfPath(shelf, rack, zone, warehouse) {
		t.Error("rack.ZoneCode mismatch should fail")
	}

	// Zone attached to another warehouse.
	shelf, rack, zone, warehouse = validChain()
	zone.WarehouseCode = "WH2"
	if models.ValidateShelfPath(shelf, rack, zone, warehouse) {
		t.Error("zone.WarehouseCode mismatch should fail")
	}

	// Shelf snapshot disagreeing at the warehouse level only.
	shelf, rack, zone, warehouse = validChain()
	shelf.WarehouseCode = "WH2"
	if models.ValidateShelfPath(shelf, rack, zone, warehouse) {
		t.Error("shelf.WarehouseCode mismatch should fail")
	}
}

func TestPlacementKeyFor(t *testing.T) {
	if got := models.PlacementKeyFor("SKU-9", "s1"); got != "SKU-9_S1" {
		t.Fatalf("expected SKU-9_S1; got %s", got)
	}
	// Surrounding whitespace is not part of the key.
	if got := models.PlacementKeyFor("  SKU-9 ", " s1 "); got != "SKU-9_S1" {
		t.Fatalf("expected trimmed key SKU-9_S1; got %s", got)
	}
}

func TestInventoryCounters_DerivedStock(t *testing.T) {
	counters := models.InventoryCounters{
		OpeningStock:   100,
		InwardAddition: 40,
		AutoAddition:   5,
		Deduction:      30,
		AutoDeduction:  10,
		BlockedStock:   20,
	}
	if got := counters.PhysicalStock(); got != 105 {
		t.Fatalf("expected physical stock 105; got %d", got)
	}
	if got := counters.AvailableStock(); got != 85 {
		t.Fatalf("expected available stock 85; got %d", got)
	}
}
