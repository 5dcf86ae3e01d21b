package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scipiia/effvalid/internal/storage"
)

// GetWorkOrder returns (nil, nil) when the work order does not exist. A dangling
// reference is handled rule-side, not as a storage error.
func (s *Storage) GetWorkOrder(ctx context.Context, id int64) (*storage.WorkOrder, error) {
	const op = "storage.mysql.GetWorkOrder"

	var wo storage.WorkOrder
	err := s.q().QueryRowContext(ctx, `
		SELECT id, wo_number, machine_id, planned_qty, msd_month
		FROM work_orders
		WHERE id = ?
	`, id).Scan(&wo.ID, &wo.WONumber, &wo.MachineID, &wo.PlannedQty, &wo.MSDMonth)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: id=%d: %w", op, id, err)
	}

	return &wo, nil
}
