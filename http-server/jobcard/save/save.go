package save

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/scipiia/effvalid/internal/storage"
	"github.com/shopspring/decimal"
)

type JobCards interface {
	SubmitJobCard(ctx context.Context, card *storage.JobCard, validate storage.ValidateFunc) ([]*storage.ValidationFlag, error)
}

type Validator interface {
	RunValidationsWith(ctx context.Context, store storage.ValidationStore, card *storage.JobCard) ([]*storage.ValidationFlag, error)
}

type Request struct {
	EmployeeID       int64           `json:"employee_id"`
	SupervisorID     *int64          `json:"supervisor_id"`
	MachineID        int64           `json:"machine_id"`
	WorkOrderID      int64           `json:"work_order_id"`
	ActivityCodeID   *int64          `json:"activity_code_id"`
	ActivityDesc     string          `json:"activity_desc"`
	Qty              decimal.Decimal `json:"qty"`
	ActualHours      decimal.Decimal `json:"actual_hours"`
	Status           string          `json:"status"`
	EntryDate        string          `json:"entry_date"`
	Shift            int             `json:"shift"`
	Source           string          `json:"source"`
	EfficiencyModule string          `json:"efficiency_module"`
}

type Response struct {
	ID       int64                     `json:"id"`
	HasFlags bool                      `json:"has_flags"`
	Flags    []*storage.ValidationFlag `json:"flags"`
	Error    string                    `json:"error,omitempty"`
}

// SaveJobCardOperation persists a new job card and runs the validation engine
// on it in-request, both inside one storage transaction. Flags are advisory
// and never reject the submission; a failed validation run rolls the card
// write back and fails the request, so a retry never duplicates the card.
func SaveJobCardOperation(log *slog.Logger, cards JobCards, validator Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobcard.save.SaveJobCardOperation"

		var req Request
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		card, err := CardFromRequest(req)
		if err != nil {
			log.Error("invalid job card payload", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		flags, err := cards.SubmitJobCard(ctx, card,
			func(ctx context.Context, store storage.ValidationStore, card *storage.JobCard) ([]*storage.ValidationFlag, error) {
				return validator.RunValidationsWith(ctx, store, card)
			})
		if err != nil {
			log.Error("failed to submit job card", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			ID:       card.ID,
			HasFlags: card.HasFlags,
			Flags:    flags,
		})
	}
}

// CardFromRequest validates the payload and builds the storage struct.
func CardFromRequest(req Request) (*storage.JobCard, error) {
	entryDate, err := time.Parse("2006-01-02", req.EntryDate)
	if err != nil {
		return nil, fmt.Errorf("entry_date %q: expected YYYY-MM-DD", req.EntryDate)
	}

	if req.Qty.IsNegative() {
		return nil, fmt.Errorf("qty must not be negative")
	}
	if req.ActualHours.IsNegative() {
		return nil, fmt.Errorf("actual_hours must not be negative")
	}
	if req.Shift < 1 || req.Shift > 3 {
		return nil, fmt.Errorf("shift must be 1, 2 or 3")
	}
	if req.Status != storage.StatusComplete && req.Status != storage.StatusIncomplete {
		return nil, fmt.Errorf("status must be %s or %s", storage.StatusComplete, storage.StatusIncomplete)
	}

	return &storage.JobCard{
		EmployeeID:       req.EmployeeID,
		SupervisorID:     req.SupervisorID,
		MachineID:        req.MachineID,
		WorkOrderID:      req.WorkOrderID,
		ActivityCodeID:   req.ActivityCodeID,
		ActivityDesc:     req.ActivityDesc,
		Qty:              req.Qty,
		ActualHours:      req.ActualHours,
		Status:           req.Status,
		EntryDate:        entryDate,
		Shift:            req.Shift,
		Source:           req.Source,
		EfficiencyModule: req.EfficiencyModule,
	}, nil
}
