package mysql

import (
	"context"
	"fmt"

	"github.com/scipiia/effvalid/internal/storage"
)

// SubmitJobCard inserts the card and runs validate against a transaction-bound
// storage, then commits once. A failed validation run rolls the insert back,
// so a card is never committed without its flags.
func (s *Storage) SubmitJobCard(ctx context.Context, card *storage.JobCard, validate storage.ValidateFunc) ([]*storage.ValidationFlag, error) {
	const op = "storage.mysql.SubmitJobCard"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	txStore := s.withTx(tx)

	id, err := txStore.SaveJobCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	card.ID = id

	flags, err := validate(ctx, txStore, card)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	return flags, nil
}

// ReviseJobCard is the edit counterpart of SubmitJobCard: the field update and
// the re-validation of the card share one transaction.
func (s *Storage) ReviseJobCard(ctx context.Context, card *storage.JobCard, validate storage.ValidateFunc) ([]*storage.ValidationFlag, error) {
	const op = "storage.mysql.ReviseJobCard"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	txStore := s.withTx(tx)

	if err := txStore.UpdateJobCard(ctx, card); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	flags, err := validate(ctx, txStore, card)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	return flags, nil
}
