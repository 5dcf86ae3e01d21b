package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scipiia/effvalid/internal/storage"
)

const jobCardColumns = `id, employee_id, supervisor_id, machine_id, work_order_id,
	activity_code_id, activity_desc, qty, actual_hours, status, entry_date,
	shift, source, efficiency_module, has_flags`

func (s *Storage) SaveJobCard(ctx context.Context, card *storage.JobCard) (int64, error) {
	const op = "storage.mysql.SaveJobCard"

	res, err := s.q().ExecContext(ctx, `
		INSERT INTO job_cards
		(employee_id, supervisor_id, machine_id, work_order_id, activity_code_id,
		 activity_desc, qty, actual_hours, status, entry_date, shift, source,
		 efficiency_module, has_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)
	`,
		card.EmployeeID,
		nullInt64(card.SupervisorID),
		card.MachineID,
		card.WorkOrderID,
		nullInt64(card.ActivityCodeID),
		card.ActivityDesc,
		card.Qty,
		card.ActualHours,
		card.Status,
		card.EntryDate.Format("2006-01-02"),
		card.Shift,
		card.Source,
		card.EfficiencyModule,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: insert job card: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}

	return id, nil
}

// UpdateJobCard rewrites the editable fields of an existing card. entry_date is
// immutable for validation purposes, so it is deliberately absent here; edits
// re-trigger the engine on the same id.
func (s *Storage) UpdateJobCard(ctx context.Context, card *storage.JobCard) error {
	const op = "storage.mysql.UpdateJobCard"

	res, err := s.q().ExecContext(ctx, `
		UPDATE job_cards
		SET activity_code_id = ?, activity_desc = ?, qty = ?, actual_hours = ?,
		    status = ?, shift = ?
		WHERE id = ?
	`,
		nullInt64(card.ActivityCodeID),
		card.ActivityDesc,
		card.Qty,
		card.ActualHours,
		card.Status,
		card.Shift,
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: update job card id=%d: %w", op, card.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Безопасно: строка могла совпасть полностью, проверяем существование
		var exists bool
		if err := s.q().QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM job_cards WHERE id = ?)`, card.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: id=%d: %w", op, card.ID, storage.ErrNotFound)
		}
	}

	return nil
}

func (s *Storage) GetJobCard(ctx context.Context, id int64) (*storage.JobCard, error) {
	const op = "storage.mysql.GetJobCard"

	row := s.q().QueryRowContext(ctx,
		`SELECT `+jobCardColumns+` FROM job_cards WHERE id = ?`, id)

	card, err := scanJobCard(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: id=%d: %w", op, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return card, nil
}

func (s *Storage) ListJobCards(ctx context.Context, filter storage.JobCardFilter) ([]*storage.JobCard, error) {
	const op = "storage.mysql.ListJobCards"

	query := `SELECT ` + jobCardColumns + ` FROM job_cards WHERE work_order_id = ? AND entry_date = ?`
	args := []interface{}{filter.WorkOrderID, filter.EntryDate.Format("2006-01-02")}

	if filter.EmployeeID != nil {
		query += ` AND employee_id = ?`
		args = append(args, *filter.EmployeeID)
	}
	if filter.MachineID != nil {
		query += ` AND machine_id = ?`
		args = append(args, *filter.MachineID)
	}
	if filter.ActivityCodeID != nil {
		query += ` AND activity_code_id = ?`
		args = append(args, *filter.ActivityCodeID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var cards []*storage.JobCard
	for rows.Next() {
		card, err := scanJobCard(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

func (s *Storage) setHasFlagsTx(ctx context.Context, tx *sql.Tx, jobCardID int64, hasFlags bool) error {
	const op = "storage.mysql.setHasFlagsTx"

	_, err := tx.ExecContext(ctx,
		`UPDATE job_cards SET has_flags = ? WHERE id = ?`, hasFlags, jobCardID)
	if err != nil {
		return fmt.Errorf("%s: id=%d: %w", op, jobCardID, err)
	}

	return nil
}

func scanJobCard(scan func(dest ...interface{}) error) (*storage.JobCard, error) {
	var (
		card         storage.JobCard
		supervisorID sql.NullInt64
		activityCode sql.NullInt64
	)

	err := scan(
		&card.ID,
		&card.EmployeeID,
		&supervisorID,
		&card.MachineID,
		&card.WorkOrderID,
		&activityCode,
		&card.ActivityDesc,
		&card.Qty,
		&card.ActualHours,
		&card.Status,
		&card.EntryDate,
		&card.Shift,
		&card.Source,
		&card.EfficiencyModule,
		&card.HasFlags,
	)
	if err != nil {
		return nil, err
	}

	if supervisorID.Valid {
		card.SupervisorID = &supervisorID.Int64
	}
	if activityCode.Valid {
		card.ActivityCodeID = &activityCode.Int64
	}

	return &card, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
