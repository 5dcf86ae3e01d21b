package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scipiia/effvalid/internal/storage"
	"github.com/shopspring/decimal"
)

type JobCards interface {
	GetJobCard(ctx context.Context, id int64) (*storage.JobCard, error)
	ReviseJobCard(ctx context.Context, card *storage.JobCard, validate storage.ValidateFunc) ([]*storage.ValidationFlag, error)
}

type Validator interface {
	RunValidationsWith(ctx context.Context, store storage.ValidationStore, card *storage.JobCard) ([]*storage.ValidationFlag, error)
}

// Request carries the editable fields. Absent fields keep their current value;
// entry_date is immutable, edits re-trigger validation on the same id.
type Request struct {
	ActivityCodeID *int64           `json:"activity_code_id"`
	ActivityDesc   *string          `json:"activity_desc"`
	Qty            *decimal.Decimal `json:"qty"`
	ActualHours    *decimal.Decimal `json:"actual_hours"`
	Status         *string          `json:"status"`
	Shift          *int             `json:"shift"`
}

type Response struct {
	ID       int64                     `json:"id"`
	HasFlags bool                      `json:"has_flags"`
	Flags    []*storage.ValidationFlag `json:"flags"`
	Error    string                    `json:"error,omitempty"`
}

func UpdateJobCardOperation(log *slog.Logger, cards JobCards, validator Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobcard.update.UpdateJobCardOperation"

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid job card id", http.StatusBadRequest)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		card, err := cards.GetJobCard(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "job card not found", http.StatusNotFound)
				return
			}
			log.Error("failed to load job card", slog.String("op", op), slog.Int64("id", id), slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if err := apply(card, req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// the field update and the re-validation share one transaction
		flags, err := cards.ReviseJobCard(ctx, card,
			func(ctx context.Context, store storage.ValidationStore, card *storage.JobCard) ([]*storage.ValidationFlag, error) {
				return validator.RunValidationsWith(ctx, store, card)
			})
		if err != nil {
			log.Error("failed to update job card", slog.String("op", op), slog.Int64("id", id), slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, Response{
			ID:       card.ID,
			HasFlags: card.HasFlags,
			Flags:    flags,
		})
	}
}

func apply(card *storage.JobCard, req Request) error {
	if req.ActivityCodeID != nil {
		card.ActivityCodeID = req.ActivityCodeID
	}
	if req.ActivityDesc != nil {
		card.ActivityDesc = *req.ActivityDesc
	}
	if req.Qty != nil {
		if req.Qty.IsNegative() {
			return errors.New("qty must not be negative")
		}
		card.Qty = *req.Qty
	}
	if req.ActualHours != nil {
		if req.ActualHours.IsNegative() {
			return errors.New("actual_hours must not be negative")
		}
		card.ActualHours = *req.ActualHours
	}
	if req.Status != nil {
		if *req.Status != storage.StatusComplete && *req.Status != storage.StatusIncomplete {
			return errors.New("status must be C or IC")
		}
		card.Status = *req.Status
	}
	if req.Shift != nil {
		if *req.Shift < 1 || *req.Shift > 3 {
			return errors.New("shift must be 1, 2 or 3")
		}
		card.Shift = *req.Shift
	}

	return nil
}
