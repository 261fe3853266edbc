package models

import (
	"errors"
	"strings"
	"testing"
)

func importHeader() []string {
	return []string{
		"Warehouse Code", "Zone Code", "Rack Code",
		"Shelf Code", "Business Product SKU", "Business Product Quantity",
	}
}

func TestMapImportColumns_CaseAndWhitespaceInsensitive(t *testing.T) {
	header := []string{
		"  warehouse code ", "ZONE CODE", "Rack  Code",
		"shelf code", "business product sku", "Business Product Quantity",
	}
	columns, err := mapImportColumns(header)
	if err != nil {
		t.Fatalf("mapImportColumns: %v", err)
	}
	if columns["Warehouse Code"] != 0 || columns["Business Product Quantity"] != 5 {
		t.Fatalf("unexpected column mapping: %v", columns)
	}
}

func TestMapImportColumns_MissingColumn(t *testing.T) {
	header := importHeader()[:5]
	_, err := mapImportColumns(header)
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	if err.Error() != "missing required column: Business Product Quantity" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestBuildImportRow(t *testing.T) {
	columns, err := mapImportColumns(importHeader())
	if err != nil {
		t.Fatalf("mapImportColumns: %v", err)
	}

	cases := []struct {
		name    string
		record  []string
		status  ImportRowStatus
		message string
	}{
		{
			name:   "valid row stays pending",
			record: []string{"WH1", "Z1", "R1", "S1", "SKU-1", "12"},
			status: "",
		},
		{
			name:   "whole decimal accepted",
			record: []string{"WH1", "Z1", "R1", "S1", "SKU-1", "12.0"},
			status: "",
		},
		{
			name:    "empty row skipped",
			record:  []string{"", "", "", "", "", ""},
			status:  ImportRowStatusSkipped,
			message: "empty row",
		},
		{
			name:    "zero quantity rejected",
			record:  []string{"WH1", "Z1", "R1", "S1", "SKU-1", "0"},
			status:  ImportRowStatusError,
			message: "quantity must be a positive number",
		},
		{
			name:    "missing sku",
			record:  []string{"WH1", "Z1", "R1", "S1", "", "12"},
			status:  ImportRowStatusError,
			message: "product sku is required",
		},
		{
			name:    "missing shelf code",
			record:  []string{"WH1", "Z1", "R1", "", "SKU-1", "12"},
			status:  ImportRowStatusError,
			message: "shelf code is required",
		},
		{
			name:    "non-numeric quantity",
			record:  []string{"WH1", "Z1", "R1", "S1", "SKU-1", "a lot"},
			status:  ImportRowStatusError,
			message: "quantity is not a number",
		},
		{
			name:    "fractional quantity",
			record:  []string{"WH1", "Z1", "R1", "S1", "SKU-1", "3.5"},
			status:  ImportRowStatusError,
			message: "quantity must be a whole number",
		},
		{
			name:    "negative quantity",
			record:  []string{"WH1", "Z1", "R1", "S1", "SKU-1", "-4"},
			status:  ImportRowStatusError,
			message: "quantity must be a positive number",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := buildImportRow(tc.record, columns, 2)
			if row.Status != tc.status {
				t.Fatalf("expected status %q; got %q (%s)", tc.status, row.Status, row.Message)
			}
			if tc.message != "" && row.Message != tc.message {
				t.Fatalf("expected message %q; got %q", tc.message, row.Message)
			}
		})
	}
}

func TestParseImportFile_LegacyXlsRejected(t *testing.T) {
	_, err := parseImportFile("stock.xls", []byte("anything"))
	if err == nil {
		t.Fatal("expected error for .xls upload")
	}
	if !strings.Contains(err.Error(), ".xls") || !strings.Contains(err.Error(), ".xlsx") {
		t.Fatalf("expected message to name the legacy format and the alternative; got %v", err)
	}
}

func TestBuildImportRow_ShortRecord(t *testing.T) {
	columns, _ := mapImportColumns(importHeader())
	row := buildImportRow([]string{"WH1", "Z1"}, columns, 2)
	if row.Status != ImportRowStatusError {
		t.Fatalf("expected error status; got %q", row.Status)
	}
}

func stagedRows(n int) []stagedInward {
	ops := make([]stagedInward, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, stagedInward{
			row:      &ImportRow{RowNumber: i + 2},
			shelf:    &Shelf{Code: "S1"},
			quantity: 1,
		})
	}
	return ops
}

func TestImportBatch_ChunksAtOpLimit(t *testing.T) {
	var chunkSizes []int
	// Limit of 9 ops holds 3 rows per chunk.
	batch := newImportBatch(9, func(ops []stagedInward) error {
		chunkSizes = append(chunkSizes, len(ops))
		return nil
	})

	rows := stagedRows(7)
	for _, op := range rows {
		if err := batch.add(op); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := batch.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(chunkSizes) != 3 || chunkSizes[0] != 3 || chunkSizes[1] != 3 || chunkSizes[2] != 1 {
		t.Fatalf("expected chunks [3 3 1]; got %v", chunkSizes)
	}
	for _, op := range rows {
		if op.row.Status != ImportRowStatusSuccess {
			t.Fatalf("row %d: expected success; got %q", op.row.RowNumber, op.row.Status)
		}
	}
}

func TestImportBatch_FailedChunkMarksItsRows(t *testing.T) {
	calls := 0
	batch := newImportBatch(6, func(ops []stagedInward) error {
		calls++
		if calls == 2 {
			return errors.New("deadlock")
		}
		return nil
	})

	rows := stagedRows(4)
	var addErr error
	for _, op := range rows {
		if addErr = batch.add(op); addErr != nil {
			break
		}
	}
	if addErr == nil {
		addErr = batch.flush()
	}
	if addErr == nil {
		t.Fatal("expected the second chunk to fail")
	}

	// First chunk committed.
	for _, op := range rows[:2] {
		if op.row.Status != ImportRowStatusSuccess {
			t.Fatalf("row %d: expected success; got %q", op.row.RowNumber, op.row.Status)
		}
	}
	// Second chunk failed and its rows carry the cause.
	for _, op := range rows[2:] {
		if op.row.Status != ImportRowStatusError {
			t.Fatalf("row %d: expected error; got %q", op.row.RowNumber, op.row.Status)
		}
		if !strings.Contains(op.row.Message, "deadlock") {
			t.Fatalf("row %d: expected failure cause in message; got %q", op.row.RowNumber, op.row.Message)
		}
	}
}

func TestImportBatch_FlushOnEmptyIsNoop(t *testing.T) {
	batch := newImportBatch(450, func(ops []stagedInward) error {
		t.Fatal("commit should not run for an empty batch")
		return nil
	})
	if err := batch.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
