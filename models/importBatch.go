package models

// ImportRow tracks one spreadsheet row through the pipeline. RowNumber is
// the 1-based spreadsheet row, so data starts at 2.
type ImportRow struct {
	RowNumber     int             `json:"row_number"`
	WarehouseCode string          `json:"warehouse_code"`
	ZoneCode      string          `json:"zone_code"`
	RackCode      string          `json:"rack_code"`
	ShelfCode     string          `json:"shelf_code"`
	Sku           string          `json:"sku"`
	QuantityRaw   string          `json:"quantity_raw"`
	Quantity      int64           `json:"quantity"`
	Status        ImportRowStatus `json:"status"`
	Message       string          `json:"message"`
}

// stagedInward is one validated row ready to commit, with everything it
// resolved so the commit does not re-read location records.
type stagedInward struct {
	row      *ImportRow
	shelf    *Shelf
	quantity int64
}

// opsPerInward counts the writes one staged row performs: the product
// counter update, the placement upsert and the audit row.
const opsPerInward = 3

// importBatch accumulates staged rows and commits them in chunks so no
// single transaction exceeds the configured operation limit. The commit
// function is injected; rows are marked Success only after their chunk
// commits, and every row of a failed chunk is marked Error.
type importBatch struct {
	opLimit int
	staged  []stagedInward
	commit  func(batch []stagedInward) error
}

func newImportBatch(opLimit int, commit func(batch []stagedInward) error) *importBatch {
	if opLimit < opsPerInward {
		opLimit = opsPerInward
	}
	return &importBatch{opLimit: opLimit, commit: commit}
}

func (b *importBatch) pendingOps() int {
	return len(b.staged) * opsPerInward
}

// add stages a row, flushing first when the row would not fit in the
// current chunk.
func (b *importBatch) add(op stagedInward) error {
	if b.pendingOps()+opsPerInward > b.opLimit {
		if err := b.flush(); err != nil {
			return err
		}
	}
	b.staged = append(b.staged, op)
	return nil
}

// flush commits the pending chunk and stamps row statuses. A commit error
// marks every row in the chunk and is returned so the caller can abort
// the remainder of the file.
func (b *importBatch) flush() error {
	if len(b.staged) == 0 {
		return nil
	}
	batch := b.staged
	b.staged = nil

	if err := b.commit(batch); err != nil {
		for _, op := range batch {
			op.row.Status = ImportRowStatusError
			op.row.Message = "chunk commit failed: " + err.Error()
		}
		return err
	}
	for _, op := range batch {
		op.row.Status = ImportRowStatusSuccess
		op.row.Message = "imported"
	}
	return nil
}
