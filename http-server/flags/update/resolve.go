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
)

type Flags interface {
	ResolveFlag(ctx context.Context, flagID int64, resolvedBy int64) error
}

type Request struct {
	ResolvedBy int64 `json:"resolved_by"`
}

type Response struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// ResolveFlagOperation is the supervisor resolution workflow. It only toggles
// resolved/resolved_by; the engine owns flag creation and nothing deletes flags.
func ResolveFlagOperation(log *slog.Logger, flags Flags) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.flags.update.ResolveFlagOperation"

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid flag id", http.StatusBadRequest)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.ResolvedBy == 0 {
			http.Error(w, "resolved_by is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := flags.ResolveFlag(ctx, id, req.ResolvedBy); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "unresolved flag not found", http.StatusNotFound)
				return
			}
			log.Error("failed to resolve flag", slog.String("op", op), slog.Int64("id", id), slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, Response{ID: id, Status: "resolved"})
	}
}
