package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scipiia/effvalid/internal/storage"
)

const flagColumns = `id, job_card_id, flag_type, details, resolved, resolved_by, created_at`

func (s *Storage) GetUnresolvedFlags(ctx context.Context, jobCardID int64) ([]*storage.ValidationFlag, error) {
	const op = "storage.mysql.GetUnresolvedFlags"

	rows, err := s.q().QueryContext(ctx, `
		SELECT `+flagColumns+`
		FROM validation_flags
		WHERE job_card_id = ? AND resolved = FALSE
		ORDER BY id ASC
	`, jobCardID)
	if err != nil {
		return nil, fmt.Errorf("%s: job_card_id=%d: %w", op, jobCardID, err)
	}
	defer rows.Close()

	return collectFlags(rows, op)
}

func (s *Storage) ListFlags(ctx context.Context, filter storage.FlagFilter) ([]*storage.ValidationFlag, error) {
	const op = "storage.mysql.ListFlags"

	query := `
		SELECT f.id, f.job_card_id, f.flag_type, f.details, f.resolved, f.resolved_by, f.created_at
		FROM validation_flags f
	`
	var args []interface{}
	where := " WHERE 1=1"

	if filter.WorkOrderID != nil {
		query += ` JOIN job_cards jc ON jc.id = f.job_card_id`
		where += ` AND jc.work_order_id = ?`
		args = append(args, *filter.WorkOrderID)
	}
	if filter.Resolved != nil {
		where += ` AND f.resolved = ?`
		args = append(args, *filter.Resolved)
	}
	if filter.FlagType != nil {
		where += ` AND f.flag_type = ?`
		args = append(args, string(*filter.FlagType))
	}

	rows, err := s.q().QueryContext(ctx, query+where+` ORDER BY f.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return collectFlags(rows, op)
}

// ResolveFlag is the only write the resolution workflow performs: it toggles
// resolved/resolved_by and never touches flag_type or details.
func (s *Storage) ResolveFlag(ctx context.Context, flagID int64, resolvedBy int64) error {
	const op = "storage.mysql.ResolveFlag"

	res, err := s.q().ExecContext(ctx, `
		UPDATE validation_flags
		SET resolved = TRUE, resolved_by = ?
		WHERE id = ? AND resolved = FALSE
	`, resolvedBy, flagID)
	if err != nil {
		return fmt.Errorf("%s: id=%d: %w", op, flagID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: id=%d: %w", op, flagID, storage.ErrNotFound)
	}

	return nil
}

// PersistValidation writes one engine run atomically: net-new flags, in-place
// details updates, and has_flags per touched card. When the storage is bound
// to a submission transaction the batch joins it and commits together with
// the job-card write; otherwise the batch runs in its own transaction.
func (s *Storage) PersistValidation(ctx context.Context, result storage.ValidationResult) error {
	const op = "storage.mysql.PersistValidation"

	if s.tx != nil {
		if err := s.persistValidation(ctx, s.tx, result); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	if err := s.persistValidation(ctx, tx, result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	return nil
}

func (s *Storage) persistValidation(ctx context.Context, tx *sql.Tx, result storage.ValidationResult) error {
	const op = "storage.mysql.persistValidation"

	if len(result.NewFlags) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO validation_flags
			(job_card_id, flag_type, details, resolved, created_at)
			VALUES (?, ?, ?, FALSE, NOW())
		`)
		if err != nil {
			return fmt.Errorf("%s: prepare insert: %w", op, err)
		}
		defer stmt.Close()

		for _, f := range result.NewFlags {
			res, err := stmt.Exec(f.JobCardID, string(f.FlagType), f.Details)
			if err != nil {
				return fmt.Errorf("%s: insert flag job_card_id=%d type=%s: %w", op, f.JobCardID, f.FlagType, err)
			}
			if f.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("%s: last insert id: %w", op, err)
			}
		}
	}

	for _, f := range result.UpdatedFlags {
		// created_at сохраняем, меняются только details
		_, err := tx.ExecContext(ctx, `
			UPDATE validation_flags SET details = ? WHERE id = ? AND resolved = FALSE
		`, f.Details, f.ID)
		if err != nil {
			return fmt.Errorf("%s: update flag id=%d: %w", op, f.ID, err)
		}
	}

	for jobCardID, hasFlags := range result.HasFlags {
		if err := s.setHasFlagsTx(ctx, tx, jobCardID, hasFlags); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

func collectFlags(rows *sql.Rows, op string) ([]*storage.ValidationFlag, error) {
	var flags []*storage.ValidationFlag
	for rows.Next() {
		var (
			f          storage.ValidationFlag
			resolvedBy sql.NullInt64
		)
		err := rows.Scan(&f.ID, &f.JobCardID, &f.FlagType, &f.Details, &f.Resolved, &resolvedBy, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if resolvedBy.Valid {
			f.ResolvedBy = &resolvedBy.Int64
		}
		flags = append(flags, &f)
	}

	return flags, rows.Err()
}
