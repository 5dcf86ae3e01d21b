package get

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/scipiia/effvalid/internal/storage"
)

type Flags interface {
	ListFlags(ctx context.Context, filter storage.FlagFilter) ([]*storage.ValidationFlag, error)
}

// GetFlags is the supervisor review list. Query params: resolved=true/false,
// flag_type, work_order_id; all optional.
func GetFlags(log *slog.Logger, flags Flags) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.flags.get.GetFlags"

		filter, err := filterFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := flags.ListFlags(ctx, filter)
		if err != nil {
			log.Error("failed to list flags", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if list == nil {
			list = []*storage.ValidationFlag{}
		}
		render.JSON(w, r, list)
	}
}

func filterFromQuery(r *http.Request) (storage.FlagFilter, error) {
	var filter storage.FlagFilter

	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			return filter, err
		}
		filter.Resolved = &resolved
	}
	if v := r.URL.Query().Get("flag_type"); v != "" {
		ft := storage.FlagType(v)
		switch ft {
		case storage.FlagMSDWindow, storage.FlagDuplication, storage.FlagAWC,
			storage.FlagSplitCandidate, storage.FlagQtyMismatch:
			filter.FlagType = &ft
		default:
			return filter, fmt.Errorf("unknown flag_type %q", v)
		}
	}
	if v := r.URL.Query().Get("work_order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.WorkOrderID = &id
	}

	return filter, nil
}
