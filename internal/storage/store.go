package storage

import "context"

// ValidationStore is the data seam the validation engine runs through. During
// a submission it is bound to the transaction that wrote the job card, so the
// run reads the same snapshot and its flags commit or roll back together with
// the card.
type ValidationStore interface {
	GetWorkOrder(ctx context.Context, id int64) (*WorkOrder, error)
	ListJobCards(ctx context.Context, filter JobCardFilter) ([]*JobCard, error)
	GetUnresolvedFlags(ctx context.Context, jobCardID int64) ([]*ValidationFlag, error)
	PersistValidation(ctx context.Context, result ValidationResult) error
}

// ValidateFunc runs the validation engine for a freshly written job card
// inside the submission transaction.
type ValidateFunc func(ctx context.Context, store ValidationStore, card *JobCard) ([]*ValidationFlag, error)
