package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	getflags "github.com/scipiia/effvalid/http-server/flags/get"
	resolveflags "github.com/scipiia/effvalid/http-server/flags/update"
	getjobcard "github.com/scipiia/effvalid/http-server/jobcard/get"
	savejobcard "github.com/scipiia/effvalid/http-server/jobcard/save"
	updatejobcard "github.com/scipiia/effvalid/http-server/jobcard/update"
	"github.com/scipiia/effvalid/internal/service/validation"
	"github.com/scipiia/effvalid/internal/storage/mysql"
)

func routes(log *slog.Logger, storage *mysql.Storage, engine *validation.Engine) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// job card submission; the validation engine runs on every create/update
	router.Post("/api/jobcards", savejobcard.SaveJobCardOperation(log, storage, engine))
	router.Put("/api/jobcards/{id}", updatejobcard.UpdateJobCardOperation(log, storage, engine))
	router.Get("/api/jobcards/{id}", getjobcard.GetJobCard(log, storage))

	// supervisor review surface
	router.Get("/api/flags", getflags.GetFlags(log, storage))
	router.Patch("/api/flags/{id}/resolve", resolveflags.ResolveFlagOperation(log, storage))

	return router
}
