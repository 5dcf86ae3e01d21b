package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scipiia/effvalid/internal/storage"
)

type JobCards interface {
	GetJobCard(ctx context.Context, id int64) (*storage.JobCard, error)
	GetUnresolvedFlags(ctx context.Context, jobCardID int64) ([]*storage.ValidationFlag, error)
}

type Response struct {
	Card  *storage.JobCard          `json:"card"`
	Flags []*storage.ValidationFlag `json:"flags"`
}

func GetJobCard(log *slog.Logger, cards JobCards) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobcard.get.GetJobCard"

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid job card id", http.StatusBadRequest)
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

		flags, err := cards.GetUnresolvedFlags(ctx, id)
		if err != nil {
			log.Error("failed to load flags", slog.String("op", op), slog.Int64("id", id), slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, Response{Card: card, Flags: flags})
	}
}
