package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// FlagType is a closed enumeration. The dedup key of a flag is
// (job_card_id, flag_type), so free-text types are not allowed.
type FlagType string

const (
	FlagMSDWindow      FlagType = "MSD_WINDOW"
	FlagDuplication    FlagType = "DUPLICATION"
	FlagAWC            FlagType = "AWC"
	FlagSplitCandidate FlagType = "SPLIT_CANDIDATE"
	FlagQtyMismatch    FlagType = "QTY_MISMATCH"
)

// ValidationFlag is one advisory finding raised by the engine for supervisor
// review. For a given (job_card_id, flag_type) at most one unresolved flag may
// exist at a time. Resolved flags are kept for audit and never deleted.
type ValidationFlag struct {
	ID         int64     `json:"id"`
	JobCardID  int64     `json:"job_card_id"`
	FlagType   FlagType  `json:"flag_type"`
	Details    string    `json:"details"`
	Resolved   bool      `json:"resolved"`
	ResolvedBy *int64    `json:"resolved_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FlagFilter narrows ListFlags for the supervisor review list.
type FlagFilter struct {
	Resolved    *bool
	FlagType    *FlagType
	WorkOrderID *int64
}

// ValidationResult is the outcome of one engine run, persisted atomically:
// net-new flags, in-place details updates of existing unresolved flags, and the
// derived has_flags value per touched job card.
type ValidationResult struct {
	NewFlags     []*ValidationFlag
	UpdatedFlags []*ValidationFlag
	HasFlags     map[int64]bool
}
