package storage

import "github.com/shopspring/decimal"

// WorkOrder is a production order with a planned quantity and a scheduled month.
// MSDMonth has the format "YYYY-MM". PlannedQty never changes after creation.
type WorkOrder struct {
	ID         int64           `json:"id"`
	WONumber   string          `json:"wo_number"`
	MachineID  int64           `json:"machine_id"`
	PlannedQty decimal.Decimal `json:"planned_qty"`
	MSDMonth   string          `json:"msd_month"`
}
