package models

type AdjustmentType string

const (
	AdjustmentTypeInward    AdjustmentType = "inward"
	AdjustmentTypeDeduction AdjustmentType = "deduction"
)

func (t AdjustmentType) IsValid() bool {
	return t == AdjustmentTypeInward || t == AdjustmentTypeDeduction
}

type ImportRowStatus string

const (
	ImportRowStatusSuccess ImportRowStatus = "Success"
	ImportRowStatusSkipped ImportRowStatus = "Skipped"
	ImportRowStatusError   ImportRowStatus = "Error"
)

// Inventory log actions. Logs are append-only; these name the mutation
// they were written alongside.
const (
	LogActionAdjustment = "INVENTORY_ADJUSTMENT"
	LogActionBulkInward = "BULK_INWARD"
	LogActionRecount    = "PLACEMENT_RECOUNT"
)
